package lessons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

// Service exposes lesson operations scoped to a chapter.
type Service interface {
	Create(ctx context.Context, actor courses.Actor, chapterID uuid.UUID, input CreateLessonInput) (*LessonDTO, error)
	Update(ctx context.Context, actor courses.Actor, lessonID uuid.UUID, input UpdateLessonInput) (*LessonDTO, error)
	List(ctx context.Context, actor courses.Actor, chapterID uuid.UUID) ([]LessonDTO, error)
	Publish(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*LessonDTO, error)
	Unpublish(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*LessonDTO, error)
	Delete(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) error
	Reorder(ctx context.Context, actor courses.Actor, chapterID uuid.UUID, pairs []ReorderPair) error
	CreateUploadURL(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*UploadTicket, error)
}

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
	ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]models.Lesson, error)
	MaxPosition(ctx context.Context, chapterID uuid.UUID) (int, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type chapterRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Chapter, error)
}

type courseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        lessonRepository
	chapterRepo chapterRepository
	courseRepo  courseRepository
	tx          txRunner
}

// ServiceParams bundles the dependencies required to build a lesson service.
type ServiceParams struct {
	Repo        lessonRepository
	ChapterRepo chapterRepository
	CourseRepo  courseRepository
	DB          txRunner
}

// NewService constructs a lesson service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("lesson repository is required")
	}
	if params.ChapterRepo == nil {
		return nil, fmt.Errorf("chapter repository is required")
	}
	if params.CourseRepo == nil {
		return nil, fmt.Errorf("course repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	return &service{
		repo:        params.Repo,
		chapterRepo: params.ChapterRepo,
		courseRepo:  params.CourseRepo,
		tx:          params.DB,
	}, nil
}

func (s *service) Create(ctx context.Context, actor courses.Actor, chapterID uuid.UUID, input CreateLessonInput) (*LessonDTO, error) {
	if _, err := s.authorizeChapter(ctx, actor, chapterID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown lesson type")
	}

	max, err := s.repo.MaxPosition(ctx, chapterID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute lesson position")
	}

	lesson := &models.Lesson{
		ChapterID:   chapterID,
		Title:       title,
		Description: input.Description,
		Type:        input.Type,
		Content:     input.Content,
		VideoURL:    input.VideoURL,
		Position:    max + 1,
		IsFree:      input.IsFree,
		Duration:    input.Duration,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create lesson")
	}
	return FromModel(lesson), nil
}

func (s *service) Update(ctx context.Context, actor courses.Actor, lessonID uuid.UUID, input UpdateLessonInput) (*LessonDTO, error) {
	lesson, err := s.loadLesson(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		lesson.Title = title
	}
	if input.Description != nil {
		lesson.Description = input.Description
	}
	if input.Content != nil {
		lesson.Content = input.Content
	}
	if input.VideoURL != nil {
		lesson.VideoURL = input.VideoURL
	}
	if input.IsFree != nil {
		lesson.IsFree = *input.IsFree
	}
	if input.Duration != nil {
		lesson.Duration = input.Duration
	}

	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update lesson")
	}
	return FromModel(lesson), nil
}

func (s *service) List(ctx context.Context, actor courses.Actor, chapterID uuid.UUID) ([]LessonDTO, error) {
	if _, err := s.authorizeChapter(ctx, actor, chapterID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByChapter(ctx, chapterID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list lessons")
	}
	return FromModels(rows), nil
}

// Publish validates the lesson content against its type. VIDEO lessons
// need a playback id or video URL, TEXT lessons need a content body.
// QUIZ and ASSIGNMENT publish as-is.
func (s *service) Publish(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*LessonDTO, error) {
	lesson, err := s.loadLesson(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}

	if err := validatePublishable(lesson); err != nil {
		return nil, err
	}

	lesson.IsPublished = true
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "publish lesson")
	}
	return FromModel(lesson), nil
}

func (s *service) Unpublish(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*LessonDTO, error) {
	lesson, err := s.loadLesson(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}

	lesson.IsPublished = false
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unpublish lesson")
	}
	return FromModel(lesson), nil
}

func (s *service) Delete(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) error {
	lesson, err := s.loadLesson(ctx, actor, lessonID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, lesson.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete lesson")
	}
	return nil
}

// Reorder applies the (id, position) pairs atomically within a chapter.
func (s *service) Reorder(ctx context.Context, actor courses.Actor, chapterID uuid.UUID, pairs []ReorderPair) error {
	if _, err := s.authorizeChapter(ctx, actor, chapterID); err != nil {
		return err
	}
	if len(pairs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder pairs are required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		existing, err := repo.ListByChapterWithTx(tx, chapterID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lessons")
		}

		if err := validateReorder(pairs, lessonIDs(existing)); err != nil {
			return err
		}

		for _, pair := range pairs {
			if err := repo.UpdatePositionWithTx(tx, pair.ID, pair.Position); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update lesson position")
			}
		}
		return nil
	})
}

// CreateUploadURL assigns a fresh Mux direct-upload id to a VIDEO lesson.
// The Mux webhook later maps the upload id to an asset and playback id.
func (s *service) CreateUploadURL(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*UploadTicket, error) {
	lesson, err := s.loadLesson(ctx, actor, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Type != enums.LessonTypeVideo {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only video lessons accept uploads")
	}

	uploadID := uuid.NewString()
	lesson.MuxUploadID = &uploadID
	lesson.MuxAssetID = nil
	lesson.MuxPlaybackID = nil
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign upload id")
	}

	return &UploadTicket{
		LessonID:  lesson.ID,
		UploadID:  uploadID,
		UploadURL: "https://storage.mux.com/uploads/" + uploadID,
	}, nil
}

func (s *service) authorizeChapter(ctx context.Context, actor courses.Actor, chapterID uuid.UUID) (*models.Chapter, error) {
	chapter, err := s.chapterRepo.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chapter not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chapter")
	}

	course, err := s.courseRepo.FindByID(ctx, chapter.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load course")
	}
	if !courses.CanModify(actor, course) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify this course")
	}
	return chapter, nil
}

func (s *service) loadLesson(ctx context.Context, actor courses.Actor, lessonID uuid.UUID) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lesson not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lesson")
	}
	if _, err := s.authorizeChapter(ctx, actor, lesson.ChapterID); err != nil {
		return nil, err
	}
	return lesson, nil
}

func validatePublishable(lesson *models.Lesson) error {
	if strings.TrimSpace(lesson.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	switch lesson.Type {
	case enums.LessonTypeVideo:
		hasPlayback := lesson.MuxPlaybackID != nil && *lesson.MuxPlaybackID != ""
		hasURL := lesson.VideoURL != nil && *lesson.VideoURL != ""
		if !hasPlayback && !hasURL {
			return pkgerrors.New(pkgerrors.CodeValidation, "video lessons need a processed video or video URL")
		}
	case enums.LessonTypeText:
		if lesson.Content == nil || strings.TrimSpace(*lesson.Content) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "text lessons need content")
		}
	}
	return nil
}

func lessonIDs(rows []models.Lesson) map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		ids[row.ID] = struct{}{}
	}
	return ids
}

func validateReorder(pairs []ReorderPair, valid map[uuid.UUID]struct{}) error {
	if len(pairs) != len(valid) {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder must include every item exactly once")
	}
	seenIDs := make(map[uuid.UUID]struct{}, len(pairs))
	seenPositions := make(map[int]struct{}, len(pairs))
	for _, pair := range pairs {
		if _, ok := valid[pair.ID]; !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "reorder references an unknown item")
		}
		if _, dup := seenIDs[pair.ID]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "reorder contains duplicate ids")
		}
		if pair.Position < 0 || pair.Position >= len(pairs) {
			return pkgerrors.New(pkgerrors.CodeValidation, "reorder positions must form a dense range")
		}
		if _, dup := seenPositions[pair.Position]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "reorder contains duplicate positions")
		}
		seenIDs[pair.ID] = struct{}{}
		seenPositions[pair.Position] = struct{}{}
	}
	return nil
}
