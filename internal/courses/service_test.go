package courses

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
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
)

func setupCoursesTestDB(t *testing.T) *gorm.DB {
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
  position INTEGER NOT NULL,
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
  type TEXT NOT NULL DEFAULT 'VIDEO',
  content TEXT,
  video_url TEXT,
  position INTEGER NOT NULL,
  is_published INTEGER NOT NULL DEFAULT 0,
  is_free INTEGER NOT NULL DEFAULT 0,
  duration_seconds INTEGER,
  mux_asset_id TEXT,
  mux_playback_id TEXT,
  mux_upload_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		DB:     gormTxRunner{db: db},
		Outbox: outbox.NewService(outbox.NewRepository(db), nil),
	})
	require.NoError(t, err)
	return svc
}

func strPtr(s string) *string { return &s }

func seedCourse(t *testing.T, db *gorm.DB, instructorID uuid.UUID, mutate func(*models.Course)) *models.Course {
	t.Helper()
	categoryID := uuid.New()
	course := &models.Course{
		ID:           uuid.New(),
		InstructorID: instructorID,
		CategoryID:   &categoryID,
		Title:        "Intro to Go",
		Slug:         "intro-to-go-" + uuid.NewString()[:8],
		Description:  strPtr("Learn the basics"),
		ImageURL:     strPtr("https://cdn.example.com/go.png"),
		Status:       enums.CourseStatusDraft,
	}
	if mutate != nil {
		mutate(course)
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func seedChapterWithLesson(t *testing.T, db *gorm.DB, courseID uuid.UUID, chapterPublished, lessonPublished bool) (*models.Chapter, *models.Lesson) {
	t.Helper()
	chapter := &models.Chapter{
		ID:          uuid.New(),
		CourseID:    courseID,
		Title:       "Chapter",
		Position:    0,
		IsPublished: chapterPublished,
	}
	require.NoError(t, db.Create(chapter).Error)
	duration := 300
	lesson := &models.Lesson{
		ID:          uuid.New(),
		ChapterID:   chapter.ID,
		Title:       "Lesson",
		Type:        enums.LessonTypeVideo,
		Position:    0,
		IsPublished: lessonPublished,
		Duration:    &duration,
	}
	require.NoError(t, db.Create(lesson).Error)
	return chapter, lesson
}

func TestPublishRequiresPublishedContent(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	actor := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}

	course := seedCourse(t, db, instructorID, nil)
	seedChapterWithLesson(t, db, course.ID, true, false)

	_, err := svc.Publish(context.Background(), actor, course.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestPublishRequiresCompleteMetadata(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	actor := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}

	course := seedCourse(t, db, instructorID, func(c *models.Course) {
		c.ImageURL = nil
	})
	seedChapterWithLesson(t, db, course.ID, true, true)

	_, err := svc.Publish(context.Background(), actor, course.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestPublishSnapshotsCountersAndEmitsEvent(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	actor := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}

	course := seedCourse(t, db, instructorID, nil)
	seedChapterWithLesson(t, db, course.ID, true, true)
	seedChapterWithLesson(t, db, course.ID, true, true)
	// Draft chapter must not count.
	seedChapterWithLesson(t, db, course.ID, false, true)

	dto, err := svc.Publish(context.Background(), actor, course.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.CourseStatusPublished, dto.Status)
	assert.Equal(t, 2, dto.TotalChapters)
	assert.Equal(t, 2, dto.TotalLessons)
	assert.Equal(t, 600, dto.TotalDuration)
	require.NotNil(t, dto.PublishedAt)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.OutboxEventCoursePublished, events[0].EventType)
	assert.Equal(t, course.ID, events[0].AggregateID)
}

func TestPublishAlreadyPublished(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	actor := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}

	course := seedCourse(t, db, instructorID, func(c *models.Course) {
		c.Status = enums.CourseStatusPublished
	})

	_, err := svc.Publish(context.Background(), actor, course.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestUnpublishKeepsCounters(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	actor := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}

	course := seedCourse(t, db, instructorID, func(c *models.Course) {
		c.Status = enums.CourseStatusPublished
		c.TotalChapters = 3
		c.TotalLessons = 9
		c.TotalStudents = 12
	})

	dto, err := svc.Unpublish(context.Background(), actor, course.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.CourseStatusDraft, dto.Status)
	assert.Equal(t, 3, dto.TotalChapters)
	assert.Equal(t, 9, dto.TotalLessons)
	assert.Equal(t, 12, dto.TotalStudents)
}

func TestDeleteBlockedWithStudents(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	actor := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}

	course := seedCourse(t, db, instructorID, func(c *models.Course) {
		c.TotalStudents = 1
	})

	err := svc.Delete(context.Background(), actor, course.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	// Empty course deletes cleanly.
	empty := seedCourse(t, db, instructorID, nil)
	require.NoError(t, svc.Delete(context.Background(), actor, empty.ID))
}

func TestCanModify(t *testing.T) {
	ownerID := uuid.New()
	course := &models.Course{InstructorID: ownerID, Status: enums.CourseStatusDraft}

	assert.True(t, CanModify(Actor{UserID: ownerID, Role: enums.UserRoleInstructor}, course))
	assert.False(t, CanModify(Actor{UserID: uuid.New(), Role: enums.UserRoleInstructor}, course))
	assert.False(t, CanModify(Actor{UserID: ownerID, Role: enums.UserRoleStudent}, course))
	assert.True(t, CanModify(Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, course))

	archived := &models.Course{InstructorID: ownerID, Status: enums.CourseStatusArchived}
	assert.False(t, CanModify(Actor{UserID: ownerID, Role: enums.UserRoleInstructor}, archived))
	assert.True(t, CanModify(Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, archived))
}

func TestCatalogHidesUnpublished(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()

	seedCourse(t, db, instructorID, nil)
	published := seedCourse(t, db, instructorID, func(c *models.Course) {
		c.Status = enums.CourseStatusPublished
	})

	page, err := svc.ListCatalog(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Courses, 1)
	assert.Equal(t, published.ID, page.Courses[0].ID)
}

func TestGetByIDVisibility(t *testing.T) {
	db := setupCoursesTestDB(t)
	svc := newTestService(t, db)
	instructorID := uuid.New()
	course := seedCourse(t, db, instructorID, nil)

	// Anonymous reader cannot see a draft.
	_, err := svc.GetByID(context.Background(), nil, course.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	// The owner can.
	owner := Actor{UserID: instructorID, Role: enums.UserRoleInstructor}
	dto, err := svc.GetByID(context.Background(), &owner, course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, dto.ID)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "intro-to-go", slugify("Intro to Go!"))
	assert.Equal(t, "advanced-sql-2", slugify("  Advanced SQL 2 "))
	assert.Equal(t, "", slugify("???"))
}
