package chapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
)

// Repository handles chapter persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to chapter operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new chapter row.
func (r *Repository) Create(ctx context.Context, chapter *models.Chapter) error {
	if chapter == nil {
		return fmt.Errorf("chapter is required")
	}
	return r.db.WithContext(ctx).Create(chapter).Error
}

// FindByID loads a chapter by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&chapter).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

// ListByCourse returns the course's chapters ordered by position.
func (r *Repository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Chapter, error) {
	var rows []models.Chapter
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

// MaxPosition returns the highest position in the course, or -1 when empty.
func (r *Repository) MaxPosition(ctx context.Context, courseID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.Chapter{}).
		Select("MAX(position)").
		Where("course_id = ?", courseID).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

// Update saves the provided chapter.
func (r *Repository) Update(ctx context.Context, chapter *models.Chapter) error {
	if chapter == nil {
		return fmt.Errorf("chapter is required")
	}
	return r.db.WithContext(ctx).Save(chapter).Error
}

// Delete removes the chapter row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Chapter{}, "id = ?", id).Error
}

// CountPublishedLessons reports how many published lessons the chapter holds.
func (r *Repository) CountPublishedLessons(ctx context.Context, chapterID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Where("chapter_id = ? AND is_published = ?", chapterID, true).
		Count(&count).Error
	return count, err
}

// ListByCourseWithTx loads the course's chapters inside the transaction.
func (r *Repository) ListByCourseWithTx(tx *gorm.DB, courseID uuid.UUID) ([]models.Chapter, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var rows []models.Chapter
	err := tx.Where("course_id = ?", courseID).Order("position ASC").Find(&rows).Error
	return rows, err
}

// UpdatePositionWithTx sets a single chapter position inside the transaction.
func (r *Repository) UpdatePositionWithTx(tx *gorm.DB, id uuid.UUID, position int) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Chapter{}).
		Where("id = ?", id).
		Update("position", position).Error
}
