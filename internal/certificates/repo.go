package certificates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
)

// Repository handles certificate persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to certificate operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithTx persists a certificate inside the caller's transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, cert *models.Certificate) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if cert == nil {
		return fmt.Errorf("certificate is required")
	}
	return tx.Create(cert).Error
}

// FindByUserAndCourseWithTx loads the user's certificate for a course
// inside the caller's transaction.
func (r *Repository) FindByUserAndCourseWithTx(tx *gorm.DB, userID, courseID uuid.UUID) (*models.Certificate, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var cert models.Certificate
	err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// VerificationRow joins a certificate with holder and course display
// fields for public verification.
type VerificationRow struct {
	CredentialID string    `gorm:"column:credential_id"`
	HolderName   string    `gorm:"column:holder_name"`
	CourseTitle  string    `gorm:"column:course_title"`
	CourseSlug   string    `gorm:"column:course_slug"`
	IssuedAt     time.Time `gorm:"column:issued_at"`
}

// FindByCredentialID resolves a credential id to its verification row.
func (r *Repository) FindByCredentialID(ctx context.Context, credentialID string) (*VerificationRow, error) {
	var row VerificationRow
	err := r.db.WithContext(ctx).Model(&models.Certificate{}).
		Select(`certificates.credential_id AS credential_id,
users.name AS holder_name,
courses.title AS course_title,
courses.slug AS course_slug,
certificates.issued_at AS issued_at`).
		Joins("JOIN users ON users.id = certificates.user_id").
		Joins("JOIN courses ON courses.id = certificates.course_id").
		Where("certificates.credential_id = ?", credentialID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// OwnedRow joins a certificate with its course display fields.
type OwnedRow struct {
	ID           uuid.UUID `gorm:"column:id"`
	CredentialID string    `gorm:"column:credential_id"`
	CourseID     uuid.UUID `gorm:"column:course_id"`
	CourseTitle  string    `gorm:"column:course_title"`
	CourseSlug   string    `gorm:"column:course_slug"`
	IssuedAt     time.Time `gorm:"column:issued_at"`
}

// ListByUser returns the user's certificates, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]OwnedRow, error) {
	var rows []OwnedRow
	err := r.db.WithContext(ctx).Model(&models.Certificate{}).
		Select(`certificates.id AS id,
certificates.credential_id AS credential_id,
certificates.course_id AS course_id,
courses.title AS course_title,
courses.slug AS course_slug,
certificates.issued_at AS issued_at`).
		Joins("JOIN courses ON courses.id = certificates.course_id").
		Where("certificates.user_id = ?", userID).
		Order("certificates.issued_at DESC").
		Scan(&rows).Error
	return rows, err
}
