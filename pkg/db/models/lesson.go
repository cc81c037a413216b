package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// Lesson is a single unit of course content. Content fields depend on
// the lesson type: VIDEO lessons carry Mux asset references, TEXT
// lessons carry a content body.
type Lesson struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChapterID   uuid.UUID        `gorm:"column:chapter_id;type:uuid;not null;index"`
	Title       string           `gorm:"column:title;not null"`
	Description *string          `gorm:"column:description"`
	Type        enums.LessonType `gorm:"column:type;type:lesson_type;not null;default:'VIDEO'"`
	Content     *string          `gorm:"column:content"`
	VideoURL    *string          `gorm:"column:video_url"`
	Position    int              `gorm:"column:position;not null"`
	IsPublished bool             `gorm:"column:is_published;not null;default:false"`
	IsFree      bool             `gorm:"column:is_free;not null;default:false"`
	Duration    *int             `gorm:"column:duration_seconds"`

	MuxAssetID    *string `gorm:"column:mux_asset_id"`
	MuxPlaybackID *string `gorm:"column:mux_playback_id"`
	MuxUploadID   *string `gorm:"column:mux_upload_id;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
