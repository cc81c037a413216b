package lessons

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// CreateLessonInput captures the fields accepted when creating a lesson.
type CreateLessonInput struct {
	Title       string           `json:"title" validate:"required"`
	Description *string          `json:"description,omitempty"`
	Type        enums.LessonType `json:"type" validate:"required"`
	Content     *string          `json:"content,omitempty"`
	VideoURL    *string          `json:"video_url,omitempty"`
	IsFree      bool             `json:"is_free"`
	Duration    *int             `json:"duration_seconds,omitempty"`
}

// UpdateLessonInput captures the mutable lesson fields.
type UpdateLessonInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
	VideoURL    *string `json:"video_url,omitempty"`
	IsFree      *bool   `json:"is_free,omitempty"`
	Duration    *int    `json:"duration_seconds,omitempty"`
}

// ReorderPair assigns a lesson a new position within its chapter.
type ReorderPair struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Position int       `json:"position"`
}

// UploadTicket carries the fields a client needs to perform a Mux
// direct upload for a lesson.
type UploadTicket struct {
	LessonID  uuid.UUID `json:"lesson_id"`
	UploadID  string    `json:"upload_id"`
	UploadURL string    `json:"upload_url"`
}

// LessonDTO is the API-facing lesson shape.
type LessonDTO struct {
	ID            uuid.UUID        `json:"id"`
	ChapterID     uuid.UUID        `json:"chapter_id"`
	Title         string           `json:"title"`
	Description   *string          `json:"description,omitempty"`
	Type          enums.LessonType `json:"type"`
	Content       *string          `json:"content,omitempty"`
	VideoURL      *string          `json:"video_url,omitempty"`
	Position      int              `json:"position"`
	IsPublished   bool             `json:"is_published"`
	IsFree        bool             `json:"is_free"`
	Duration      *int             `json:"duration_seconds,omitempty"`
	MuxPlaybackID *string          `json:"mux_playback_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// FromModel maps a persisted lesson onto the API DTO.
func FromModel(lesson *models.Lesson) *LessonDTO {
	if lesson == nil {
		return nil
	}
	return &LessonDTO{
		ID:            lesson.ID,
		ChapterID:     lesson.ChapterID,
		Title:         lesson.Title,
		Description:   lesson.Description,
		Type:          lesson.Type,
		Content:       lesson.Content,
		VideoURL:      lesson.VideoURL,
		Position:      lesson.Position,
		IsPublished:   lesson.IsPublished,
		IsFree:        lesson.IsFree,
		Duration:      lesson.Duration,
		MuxPlaybackID: lesson.MuxPlaybackID,
		CreatedAt:     lesson.CreatedAt,
		UpdatedAt:     lesson.UpdatedAt,
	}
}

// FromModels maps a slice of lessons onto DTO values.
func FromModels(rows []models.Lesson) []LessonDTO {
	out := make([]LessonDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
