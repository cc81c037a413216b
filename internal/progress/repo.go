package progress

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
)

// Repository handles per-lesson progress persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to progress operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertWithTx records the completion state for a user and lesson
// inside the caller's transaction.
func (r *Repository) UpsertWithTx(tx *gorm.DB, row *models.UserProgress) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	var existing models.UserProgress
	err := tx.Where("user_id = ? AND lesson_id = ?", row.UserID, row.LessonID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(row).Error
	}
	if err != nil {
		return err
	}
	existing.IsCompleted = row.IsCompleted
	existing.CompletedAt = row.CompletedAt
	return tx.Save(&existing).Error
}

// CountCompletedWithTx counts the user's completed lessons that are
// published and belong to published chapters of the course.
func (r *Repository) CountCompletedWithTx(tx *gorm.DB, userID, courseID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	var count int64
	err := tx.Model(&models.UserProgress{}).
		Joins("JOIN lessons ON lessons.id = user_progress.lesson_id").
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id").
		Where("user_progress.user_id = ? AND user_progress.is_completed = ?", userID, true).
		Where("chapters.course_id = ? AND chapters.is_published = ? AND lessons.is_published = ?", courseID, true, true).
		Count(&count).Error
	return count, err
}

// CountTrackableWithTx counts the published lessons in published
// chapters of the course, the denominator for completion.
func (r *Repository) CountTrackableWithTx(tx *gorm.DB, courseID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	var count int64
	err := tx.Model(&models.Lesson{}).
		Joins("JOIN chapters ON chapters.id = lessons.chapter_id").
		Where("chapters.course_id = ? AND chapters.is_published = ? AND lessons.is_published = ?", courseID, true, true).
		Count(&count).Error
	return count, err
}

// Counts returns the user's completed count and the trackable total for
// a course outside a transaction.
func (r *Repository) Counts(ctx context.Context, userID, courseID uuid.UUID) (completed, total int64, err error) {
	db := r.db.WithContext(ctx)
	completed, err = r.CountCompletedWithTx(db, userID, courseID)
	if err != nil {
		return 0, 0, err
	}
	total, err = r.CountTrackableWithTx(db, courseID)
	if err != nil {
		return 0, 0, err
	}
	return completed, total, nil
}
