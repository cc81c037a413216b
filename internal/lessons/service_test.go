package lessons

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/chapters"
	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

func setupLessonsTestDB(t *testing.T) *gorm.DB {
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

type lessonFixture struct {
	svc     Service
	db      *gorm.DB
	actor   courses.Actor
	course  *models.Course
	chapter *models.Chapter
}

func newLessonFixture(t *testing.T) *lessonFixture {
	t.Helper()
	db := setupLessonsTestDB(t)

	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(db),
		ChapterRepo: chapters.NewRepository(db),
		CourseRepo:  courses.NewRepository(db),
		DB:          gormTxRunner{db: db},
	})
	require.NoError(t, err)

	instructorID := uuid.New()
	course := &models.Course{
		ID:           uuid.New(),
		InstructorID: instructorID,
		Title:        "Systems Programming",
		Slug:         "systems-programming-" + uuid.NewString()[:8],
		Status:       enums.CourseStatusDraft,
	}
	require.NoError(t, db.Create(course).Error)

	chapter := &models.Chapter{
		ID:       uuid.New(),
		CourseID: course.ID,
		Title:    "Memory",
		Position: 0,
	}
	require.NoError(t, db.Create(chapter).Error)

	return &lessonFixture{
		svc:     svc,
		db:      db,
		actor:   courses.Actor{UserID: instructorID, Role: enums.UserRoleInstructor},
		course:  course,
		chapter: chapter,
	}
}

func (f *lessonFixture) seedLesson(t *testing.T, mutate func(*models.Lesson)) *models.Lesson {
	t.Helper()
	lesson := &models.Lesson{
		ID:        uuid.New(),
		ChapterID: f.chapter.ID,
		Title:     "Allocators",
		Type:      enums.LessonTypeVideo,
		Position:  0,
	}
	if mutate != nil {
		mutate(lesson)
	}
	require.NoError(t, f.db.Create(lesson).Error)
	return lesson
}

func strPtr(s string) *string { return &s }

func TestCreateAppendsWithinChapter(t *testing.T) {
	f := newLessonFixture(t)

	first, err := f.svc.Create(context.Background(), f.actor, f.chapter.ID, CreateLessonInput{
		Title: "Stacks",
		Type:  enums.LessonTypeVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)

	second, err := f.svc.Create(context.Background(), f.actor, f.chapter.ID, CreateLessonInput{
		Title: "Heaps",
		Type:  enums.LessonTypeText,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
}

func TestPublishValidationByType(t *testing.T) {
	f := newLessonFixture(t)

	cases := []struct {
		name   string
		mutate func(*models.Lesson)
		wantOK bool
	}{
		{
			name:   "video without source rejected",
			mutate: func(l *models.Lesson) { l.Type = enums.LessonTypeVideo },
		},
		{
			name: "video with playback id",
			mutate: func(l *models.Lesson) {
				l.Type = enums.LessonTypeVideo
				l.MuxPlaybackID = strPtr("pb123")
			},
			wantOK: true,
		},
		{
			name: "video with external url",
			mutate: func(l *models.Lesson) {
				l.Type = enums.LessonTypeVideo
				l.VideoURL = strPtr("https://videos.example.com/allocators.mp4")
			},
			wantOK: true,
		},
		{
			name:   "text without content rejected",
			mutate: func(l *models.Lesson) { l.Type = enums.LessonTypeText },
		},
		{
			name: "text with content",
			mutate: func(l *models.Lesson) {
				l.Type = enums.LessonTypeText
				l.Content = strPtr("# Allocators")
			},
			wantOK: true,
		},
		{
			name:   "quiz publishes bare",
			mutate: func(l *models.Lesson) { l.Type = enums.LessonTypeQuiz },
			wantOK: true,
		},
		{
			name:   "assignment publishes bare",
			mutate: func(l *models.Lesson) { l.Type = enums.LessonTypeAssignment },
			wantOK: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lesson := f.seedLesson(t, tc.mutate)
			dto, err := f.svc.Publish(context.Background(), f.actor, lesson.ID)
			if tc.wantOK {
				require.NoError(t, err)
				assert.True(t, dto.IsPublished)
				return
			}
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestPublishRequiresOwnership(t *testing.T) {
	f := newLessonFixture(t)
	lesson := f.seedLesson(t, func(l *models.Lesson) {
		l.MuxPlaybackID = strPtr("pb123")
	})

	stranger := courses.Actor{UserID: uuid.New(), Role: enums.UserRoleInstructor}
	_, err := f.svc.Publish(context.Background(), stranger, lesson.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestReorderWithinChapter(t *testing.T) {
	f := newLessonFixture(t)
	a := f.seedLesson(t, func(l *models.Lesson) { l.Position = 0 })
	b := f.seedLesson(t, func(l *models.Lesson) { l.Position = 1 })

	err := f.svc.Reorder(context.Background(), f.actor, f.chapter.ID, []ReorderPair{
		{ID: b.ID, Position: 0},
		{ID: a.ID, Position: 1},
	})
	require.NoError(t, err)

	rows, err := NewRepository(f.db).ListByChapter(context.Background(), f.chapter.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, b.ID, rows[0].ID)
	assert.Equal(t, a.ID, rows[1].ID)
}

func TestReorderRejectsForeignLesson(t *testing.T) {
	f := newLessonFixture(t)
	a := f.seedLesson(t, nil)

	otherChapter := &models.Chapter{
		ID:       uuid.New(),
		CourseID: f.course.ID,
		Title:    "Concurrency",
		Position: 1,
	}
	require.NoError(t, f.db.Create(otherChapter).Error)
	foreign := &models.Lesson{
		ID:        uuid.New(),
		ChapterID: otherChapter.ID,
		Title:     "Goroutines",
		Type:      enums.LessonTypeVideo,
		Position:  0,
	}
	require.NoError(t, f.db.Create(foreign).Error)

	err := f.svc.Reorder(context.Background(), f.actor, f.chapter.ID, []ReorderPair{
		{ID: a.ID, Position: 0},
		{ID: foreign.ID, Position: 1},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreateUploadURLAssignsUploadID(t *testing.T) {
	f := newLessonFixture(t)
	lesson := f.seedLesson(t, func(l *models.Lesson) {
		l.MuxAssetID = strPtr("stale-asset")
		l.MuxPlaybackID = strPtr("stale-playback")
	})

	ticket, err := f.svc.CreateUploadURL(context.Background(), f.actor, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, ticket.LessonID)
	assert.NotEmpty(t, ticket.UploadID)
	assert.Contains(t, ticket.UploadURL, ticket.UploadID)

	stored, err := NewRepository(f.db).FindByMuxUploadID(context.Background(), ticket.UploadID)
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, stored.ID)
	assert.Nil(t, stored.MuxAssetID)
	assert.Nil(t, stored.MuxPlaybackID)
}

func TestCreateUploadURLRejectsNonVideo(t *testing.T) {
	f := newLessonFixture(t)
	lesson := f.seedLesson(t, func(l *models.Lesson) { l.Type = enums.LessonTypeText })

	_, err := f.svc.CreateUploadURL(context.Background(), f.actor, lesson.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
