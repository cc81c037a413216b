package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// Enrollment links a learner to a course. The composite unique index is
// the authoritative guard against double enrollment.
type Enrollment struct {
	ID          uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_enrollments_user_course"`
	CourseID    uuid.UUID              `gorm:"column:course_id;type:uuid;not null;uniqueIndex:idx_enrollments_user_course;index"`
	Status      enums.EnrollmentStatus `gorm:"column:status;type:enrollment_status;not null;default:'ACTIVE'"`
	CompletedAt *time.Time             `gorm:"column:completed_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
