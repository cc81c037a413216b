package courses

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// CreateCourseInput captures the fields accepted when creating a course.
type CreateCourseInput struct {
	Title       string           `json:"title" validate:"required"`
	Description *string          `json:"description,omitempty"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// UpdateCourseInput captures the mutable course fields. Nil fields are
// left unchanged.
type UpdateCourseInput struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// ListFilter narrows the public catalog listing.
type ListFilter struct {
	CategoryID *uuid.UUID
	Search     string
	Limit      int
	Cursor     string
}

// CourseDTO is the API-facing course shape.
type CourseDTO struct {
	ID            uuid.UUID          `json:"id"`
	InstructorID  uuid.UUID          `json:"instructor_id"`
	CategoryID    *uuid.UUID         `json:"category_id,omitempty"`
	Title         string             `json:"title"`
	Slug          string             `json:"slug"`
	Description   *string            `json:"description,omitempty"`
	ImageURL      *string            `json:"image_url,omitempty"`
	Price         *decimal.Decimal   `json:"price,omitempty"`
	Status        enums.CourseStatus `json:"status"`
	TotalChapters int                `json:"total_chapters"`
	TotalLessons  int                `json:"total_lessons"`
	TotalStudents int                `json:"total_students"`
	TotalDuration int                `json:"total_duration_seconds"`
	PublishedAt   *time.Time         `json:"published_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CourseListPage wraps a catalog page with its next cursor.
type CourseListPage struct {
	Courses    []CourseDTO `json:"courses"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// FromModel maps a persisted course onto the API DTO.
func FromModel(course *models.Course) *CourseDTO {
	if course == nil {
		return nil
	}
	return &CourseDTO{
		ID:            course.ID,
		InstructorID:  course.InstructorID,
		CategoryID:    course.CategoryID,
		Title:         course.Title,
		Slug:          course.Slug,
		Description:   course.Description,
		ImageURL:      course.ImageURL,
		Price:         course.Price,
		Status:        course.Status,
		TotalChapters: course.TotalChapters,
		TotalLessons:  course.TotalLessons,
		TotalStudents: course.TotalStudents,
		TotalDuration: course.TotalDuration,
		PublishedAt:   course.PublishedAt,
		CreatedAt:     course.CreatedAt,
		UpdatedAt:     course.UpdatedAt,
	}
}

// FromModels maps a slice of courses onto DTO values.
func FromModels(rows []models.Course) []CourseDTO {
	out := make([]CourseDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
