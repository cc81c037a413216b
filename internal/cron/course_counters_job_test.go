package cron

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
)

func setupCountersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE courses (
  id TEXT PRIMARY KEY,
  instructor_id TEXT NOT NULL,
  category_id TEXT,
  title TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT,
  image_url TEXT,
  price NUMERIC,
  status TEXT NOT NULL DEFAULT 'DRAFT',
  total_chapters INTEGER NOT NULL DEFAULT 0,
  total_lessons INTEGER NOT NULL DEFAULT 0,
  total_students INTEGER NOT NULL DEFAULT 0,
  total_duration_seconds INTEGER NOT NULL DEFAULT 0,
  published_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE chapters (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  position INTEGER NOT NULL DEFAULT 0,
  is_published INTEGER NOT NULL DEFAULT 0,
  is_free INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE lessons (
  id TEXT PRIMARY KEY,
  chapter_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  type TEXT NOT NULL,
  content TEXT,
  video_url TEXT,
  duration_seconds INTEGER,
  mux_asset_id TEXT,
  mux_playback_id TEXT,
  mux_upload_id TEXT,
  position INTEGER NOT NULL DEFAULT 0,
  is_published INTEGER NOT NULL DEFAULT 0,
  is_free INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE enrollments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type countersTxRunner struct {
	db *gorm.DB
}

func (r countersTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func seedDriftedCourse(t *testing.T, db *gorm.DB) *models.Course {
	t.Helper()
	course := &models.Course{
		ID:            uuid.New(),
		InstructorID:  uuid.New(),
		Title:         "Go Basics",
		Slug:          "go-basics-" + uuid.NewString()[:8],
		Status:        enums.CourseStatusPublished,
		TotalChapters: 9,
		TotalLessons:  9,
		TotalStudents: 9,
		TotalDuration: 9999,
	}
	require.NoError(t, db.Create(course).Error)

	chapter := &models.Chapter{
		ID:          uuid.New(),
		CourseID:    course.ID,
		Title:       "Intro",
		IsPublished: true,
	}
	require.NoError(t, db.Create(chapter).Error)
	duration := 300
	require.NoError(t, db.Create(&models.Lesson{
		ID:          uuid.New(),
		ChapterID:   chapter.ID,
		Title:       "Hello",
		Type:        enums.LessonTypeVideo,
		Duration:    &duration,
		IsPublished: true,
	}).Error)
	require.NoError(t, db.Create(&models.Enrollment{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		CourseID: course.ID,
		Status:   enums.EnrollmentStatusActive,
	}).Error)
	return course
}

func newCountersJob(t *testing.T, db *gorm.DB) Job {
	t.Helper()
	job, err := NewCourseCountersJob(CourseCountersJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:         countersTxRunner{db: db},
		CourseRepo: courses.NewRepository(db),
	})
	require.NoError(t, err)
	return job
}

func TestCourseCountersJobFixesDrift(t *testing.T) {
	db := setupCountersTestDB(t)
	course := seedDriftedCourse(t, db)
	job := newCountersJob(t, db)

	require.NoError(t, job.Run(context.Background()))

	stored, err := courses.NewRepository(db).FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalChapters)
	assert.Equal(t, 1, stored.TotalLessons)
	assert.Equal(t, 1, stored.TotalStudents)
	assert.Equal(t, 300, stored.TotalDuration)
}

func TestCourseCountersJobLeavesAccurateRowsAlone(t *testing.T) {
	db := setupCountersTestDB(t)
	course := seedDriftedCourse(t, db)
	require.NoError(t, db.Model(&models.Course{}).
		Where("id = ?", course.ID).
		Updates(map[string]any{
			"total_chapters":         1,
			"total_lessons":          1,
			"total_students":         1,
			"total_duration_seconds": 300,
		}).Error)
	job := newCountersJob(t, db)
	require.NoError(t, job.Run(context.Background()))

	stored, err := courses.NewRepository(db).FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalChapters)
	assert.Equal(t, 300, stored.TotalDuration)
}

func TestCourseCountersJobEmptyTables(t *testing.T) {
	db := setupCountersTestDB(t)
	job := newCountersJob(t, db)
	require.NoError(t, job.Run(context.Background()))
}
