package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// Course is the root content aggregate. Counter columns are snapshots
// maintained by the publish flow and enrollment writes, reconciled
// periodically by the cron worker.
type Course struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InstructorID uuid.UUID          `gorm:"column:instructor_id;type:uuid;not null;index"`
	CategoryID   *uuid.UUID         `gorm:"column:category_id;type:uuid;index"`
	Title        string             `gorm:"column:title;not null"`
	Slug         string             `gorm:"column:slug;not null;uniqueIndex"`
	Description  *string            `gorm:"column:description"`
	ImageURL     *string            `gorm:"column:image_url"`
	Price        *decimal.Decimal   `gorm:"column:price;type:numeric(10,2)"`
	Status       enums.CourseStatus `gorm:"column:status;type:course_status;not null;default:'DRAFT'"`

	TotalChapters int `gorm:"column:total_chapters;not null;default:0"`
	TotalLessons  int `gorm:"column:total_lessons;not null;default:0"`
	TotalStudents int `gorm:"column:total_students;not null;default:0"`
	TotalDuration int `gorm:"column:total_duration_seconds;not null;default:0"`

	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsFree reports whether the course can be enrolled without payment.
func (c *Course) IsFree() bool {
	return c.Price == nil || c.Price.IsZero()
}
