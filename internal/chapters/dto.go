package chapters

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
)

// CreateChapterInput captures the fields accepted when creating a chapter.
type CreateChapterInput struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description,omitempty"`
	IsFree      bool    `json:"is_free"`
}

// UpdateChapterInput captures the mutable chapter fields.
type UpdateChapterInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsFree      *bool   `json:"is_free,omitempty"`
}

// ReorderPair assigns a chapter a new position.
type ReorderPair struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Position int       `json:"position"`
}

// ChapterDTO is the API-facing chapter shape.
type ChapterDTO struct {
	ID          uuid.UUID `json:"id"`
	CourseID    uuid.UUID `json:"course_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Position    int       `json:"position"`
	IsPublished bool      `json:"is_published"`
	IsFree      bool      `json:"is_free"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromModel maps a persisted chapter onto the API DTO.
func FromModel(chapter *models.Chapter) *ChapterDTO {
	if chapter == nil {
		return nil
	}
	return &ChapterDTO{
		ID:          chapter.ID,
		CourseID:    chapter.CourseID,
		Title:       chapter.Title,
		Description: chapter.Description,
		Position:    chapter.Position,
		IsPublished: chapter.IsPublished,
		IsFree:      chapter.IsFree,
		CreatedAt:   chapter.CreatedAt,
		UpdatedAt:   chapter.UpdatedAt,
	}
}

// FromModels maps a slice of chapters onto DTO values.
func FromModels(rows []models.Chapter) []ChapterDTO {
	out := make([]ChapterDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
