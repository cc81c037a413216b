package enrollments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// Repository handles enrollment persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to enrollment operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithTx persists an enrollment inside the caller's transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, enrollment *models.Enrollment) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if enrollment == nil {
		return fmt.Errorf("enrollment is required")
	}
	return tx.Create(enrollment).Error
}

// FindByUserAndCourse loads the user's enrollment in a course.
func (r *Repository) FindByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByUserAndCourseWithTx is FindByUserAndCourse inside a transaction.
func (r *Repository) FindByUserAndCourseWithTx(tx *gorm.DB, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var enrollment models.Enrollment
	err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CountByUser returns how many courses the user is enrolled in.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// EnrolledCourseRow joins an enrollment with the enrolled course's
// display fields for the my-courses listing.
type EnrolledCourseRow struct {
	EnrollmentID uuid.UUID              `gorm:"column:enrollment_id"`
	CourseID     uuid.UUID              `gorm:"column:course_id"`
	Status       enums.EnrollmentStatus `gorm:"column:status"`
	EnrolledAt   time.Time              `gorm:"column:enrolled_at"`
	CompletedAt  *time.Time             `gorm:"column:completed_at"`
	Title        string                 `gorm:"column:title"`
	Slug         string                 `gorm:"column:slug"`
	ImageURL     *string                `gorm:"column:image_url"`
	TotalLessons int                    `gorm:"column:total_lessons"`
}

// ListByUser returns the user's enrollments joined with course fields,
// newest enrollment first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]EnrolledCourseRow, error) {
	var rows []EnrolledCourseRow
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Select(`enrollments.id AS enrollment_id,
enrollments.course_id AS course_id,
enrollments.status AS status,
enrollments.created_at AS enrolled_at,
enrollments.completed_at AS completed_at,
courses.title AS title,
courses.slug AS slug,
courses.image_url AS image_url,
courses.total_lessons AS total_lessons`).
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("enrollments.user_id = ?", userID).
		Order("enrollments.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// MarkCompletedWithTx transitions an enrollment to COMPLETED inside the
// caller's transaction. Completed enrollments never revert.
func (r *Repository) MarkCompletedWithTx(tx *gorm.DB, id uuid.UUID, completedAt time.Time) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Enrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       enums.EnrollmentStatusCompleted,
			"completed_at": completedAt,
		}).Error
}
