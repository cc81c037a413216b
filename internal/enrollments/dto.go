package enrollments

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// EnrollmentDTO is the API-facing enrollment shape.
type EnrollmentDTO struct {
	ID          uuid.UUID              `json:"id"`
	CourseID    uuid.UUID              `json:"course_id"`
	Status      enums.EnrollmentStatus `json:"status"`
	EnrolledAt  time.Time              `json:"enrolled_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// EnrolledCourseDTO pairs an enrollment with its course display fields.
type EnrolledCourseDTO struct {
	EnrollmentID uuid.UUID              `json:"enrollment_id"`
	CourseID     uuid.UUID              `json:"course_id"`
	Status       enums.EnrollmentStatus `json:"status"`
	EnrolledAt   time.Time              `json:"enrolled_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Title        string                 `json:"title"`
	Slug         string                 `json:"slug"`
	ImageURL     *string                `json:"image_url,omitempty"`
	TotalLessons int                    `json:"total_lessons"`
}

func fromRow(row EnrolledCourseRow) EnrolledCourseDTO {
	return EnrolledCourseDTO{
		EnrollmentID: row.EnrollmentID,
		CourseID:     row.CourseID,
		Status:       row.Status,
		EnrolledAt:   row.EnrolledAt,
		CompletedAt:  row.CompletedAt,
		Title:        row.Title,
		Slug:         row.Slug,
		ImageURL:     row.ImageURL,
		TotalLessons: row.TotalLessons,
	}
}
