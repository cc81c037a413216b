package categories

import (
	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
)

// CategoryDTO is the API-facing category shape.
type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// FromModel maps a persisted category onto the API DTO.
func FromModel(category *models.Category) *CategoryDTO {
	if category == nil {
		return nil
	}
	return &CategoryDTO{
		ID:   category.ID,
		Name: category.Name,
		Slug: category.Slug,
	}
}
