package lessons

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
)

// Repository handles lesson persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to lesson operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new lesson row.
func (r *Repository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson == nil {
		return fmt.Errorf("lesson is required")
	}
	return r.db.WithContext(ctx).Create(lesson).Error
}

// FindByID loads a lesson by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lesson).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByChapter returns the chapter's lessons ordered by position.
func (r *Repository) ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]models.Lesson, error) {
	var rows []models.Lesson
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

// MaxPosition returns the highest position in the chapter, or -1 when empty.
func (r *Repository) MaxPosition(ctx context.Context, chapterID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Select("MAX(position)").
		Where("chapter_id = ?", chapterID).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

// Update saves the provided lesson.
func (r *Repository) Update(ctx context.Context, lesson *models.Lesson) error {
	if lesson == nil {
		return fmt.Errorf("lesson is required")
	}
	return r.db.WithContext(ctx).Save(lesson).Error
}

// Delete removes the lesson row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Lesson{}, "id = ?", id).Error
}

// FindByMuxUploadID maps a Mux direct upload back to its lesson.
func (r *Repository) FindByMuxUploadID(ctx context.Context, uploadID string) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Where("mux_upload_id = ?", uploadID).First(&lesson).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindByMuxAssetID maps a Mux asset back to its lesson.
func (r *Repository) FindByMuxAssetID(ctx context.Context, assetID string) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Where("mux_asset_id = ?", assetID).First(&lesson).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByChapterWithTx loads the chapter's lessons inside the transaction.
func (r *Repository) ListByChapterWithTx(tx *gorm.DB, chapterID uuid.UUID) ([]models.Lesson, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var rows []models.Lesson
	err := tx.Where("chapter_id = ?", chapterID).Order("position ASC").Find(&rows).Error
	return rows, err
}

// UpdatePositionWithTx sets a single lesson position inside the transaction.
func (r *Repository) UpdatePositionWithTx(tx *gorm.DB, id uuid.UUID, position int) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.Lesson{}).
		Where("id = ?", id).
		Update("position", position).Error
}
