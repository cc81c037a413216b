package categories

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

func setupCategoriesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  slug TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`).Error
	require.NoError(t, err)
	return db
}

func seedCategory(t *testing.T, db *gorm.DB, name, slug string) models.Category {
	t.Helper()
	row := models.Category{ID: uuid.New(), Name: name, Slug: slug}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestListOrdersByName(t *testing.T) {
	db := setupCategoriesTestDB(t)
	seedCategory(t, db, "Programming", "programming")
	seedCategory(t, db, "Design", "design")

	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Design", list[0].Name)
	assert.Equal(t, "Programming", list[1].Name)
}

func TestGetUnknownCategory(t *testing.T) {
	db := setupCategoriesTestDB(t)

	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
