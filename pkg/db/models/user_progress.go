package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProgress stores per-lesson completion state. One row per user and
// lesson, enforced by the composite unique index.
type UserProgress struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_user_progress_user_lesson"`
	LessonID    uuid.UUID `gorm:"column:lesson_id;type:uuid;not null;uniqueIndex:idx_user_progress_user_lesson;index"`
	IsCompleted bool       `gorm:"column:is_completed;not null;default:false"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the plural-snake convention explicit for this model.
func (UserProgress) TableName() string {
	return "user_progress"
}
