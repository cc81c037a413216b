package models

import (
	"time"

	"github.com/google/uuid"
)

// Chapter groups lessons inside a course. Position is zero-based and
// dense within the course.
type Chapter struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CourseID    uuid.UUID  `gorm:"column:course_id;type:uuid;not null;index"`
	Title       string     `gorm:"column:title;not null"`
	Description *string    `gorm:"column:description"`
	Position    int        `gorm:"column:position;not null"`
	IsPublished bool       `gorm:"column:is_published;not null;default:false"`
	IsFree      bool       `gorm:"column:is_free;not null;default:false"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
