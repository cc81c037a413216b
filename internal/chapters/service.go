package chapters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

// Service exposes chapter operations scoped to a course.
type Service interface {
	Create(ctx context.Context, actor courses.Actor, courseID uuid.UUID, input CreateChapterInput) (*ChapterDTO, error)
	Update(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID, input UpdateChapterInput) (*ChapterDTO, error)
	List(ctx context.Context, actor courses.Actor, courseID uuid.UUID) ([]ChapterDTO, error)
	Publish(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) (*ChapterDTO, error)
	Unpublish(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) (*ChapterDTO, error)
	Delete(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) error
	Reorder(ctx context.Context, actor courses.Actor, courseID uuid.UUID, pairs []ReorderPair) error
}

type chapterRepository interface {
	Create(ctx context.Context, chapter *models.Chapter) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Chapter, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Chapter, error)
	MaxPosition(ctx context.Context, courseID uuid.UUID) (int, error)
	Update(ctx context.Context, chapter *models.Chapter) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountPublishedLessons(ctx context.Context, chapterID uuid.UUID) (int64, error)
}

type courseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo       chapterRepository
	courseRepo courseRepository
	tx         txRunner
}

// ServiceParams bundles the dependencies required to build a chapter service.
type ServiceParams struct {
	Repo       chapterRepository
	CourseRepo courseRepository
	DB         txRunner
}

// NewService constructs a chapter service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("chapter repository is required")
	}
	if params.CourseRepo == nil {
		return nil, fmt.Errorf("course repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	return &service{
		repo:       params.Repo,
		courseRepo: params.CourseRepo,
		tx:         params.DB,
	}, nil
}

func (s *service) Create(ctx context.Context, actor courses.Actor, courseID uuid.UUID, input CreateChapterInput) (*ChapterDTO, error) {
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	max, err := s.repo.MaxPosition(ctx, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute chapter position")
	}

	chapter := &models.Chapter{
		ID:          uuid.New(),
		CourseID:    courseID,
		Title:       title,
		Description: input.Description,
		Position:    max + 1,
		IsFree:      input.IsFree,
	}
	if err := s.repo.Create(ctx, chapter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create chapter")
	}
	return FromModel(chapter), nil
}

func (s *service) Update(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID, input UpdateChapterInput) (*ChapterDTO, error) {
	chapter, err := s.loadChapter(ctx, actor, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		chapter.Title = title
	}
	if input.Description != nil {
		chapter.Description = input.Description
	}
	if input.IsFree != nil {
		chapter.IsFree = *input.IsFree
	}

	if err := s.repo.Update(ctx, chapter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update chapter")
	}
	return FromModel(chapter), nil
}

func (s *service) List(ctx context.Context, actor courses.Actor, courseID uuid.UUID) ([]ChapterDTO, error) {
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list chapters")
	}
	return FromModels(rows), nil
}

// Publish requires the chapter to hold at least one published lesson.
func (s *service) Publish(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) (*ChapterDTO, error) {
	chapter, err := s.loadChapter(ctx, actor, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	published, err := s.repo.CountPublishedLessons(ctx, chapterID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count published lessons")
	}
	if published == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chapter needs at least one published lesson")
	}

	chapter.IsPublished = true
	if err := s.repo.Update(ctx, chapter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "publish chapter")
	}
	return FromModel(chapter), nil
}

func (s *service) Unpublish(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) (*ChapterDTO, error) {
	chapter, err := s.loadChapter(ctx, actor, courseID, chapterID)
	if err != nil {
		return nil, err
	}

	chapter.IsPublished = false
	if err := s.repo.Update(ctx, chapter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unpublish chapter")
	}
	return FromModel(chapter), nil
}

func (s *service) Delete(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) error {
	if _, err := s.loadChapter(ctx, actor, courseID, chapterID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, chapterID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete chapter")
	}
	return nil
}

// Reorder applies the (id, position) pairs atomically. Every chapter of
// the course must appear exactly once and positions must be a dense
// permutation starting at zero.
func (s *service) Reorder(ctx context.Context, actor courses.Actor, courseID uuid.UUID, pairs []ReorderPair) error {
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return err
	}
	if len(pairs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder pairs are required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		existing, err := repo.ListByCourseWithTx(tx, courseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chapters")
		}

		if err := validateReorder(pairs, chapterIDs(existing)); err != nil {
			return err
		}

		for _, pair := range pairs {
			if err := repo.UpdatePositionWithTx(tx, pair.ID, pair.Position); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update chapter position")
			}
		}
		return nil
	})
}

func (s *service) authorize(ctx context.Context, actor courses.Actor, courseID uuid.UUID) (*models.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load course")
	}
	if !courses.CanModify(actor, course) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify this course")
	}
	return course, nil
}

func (s *service) loadChapter(ctx context.Context, actor courses.Actor, courseID, chapterID uuid.UUID) (*models.Chapter, error) {
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	chapter, err := s.repo.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chapter not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chapter")
	}
	if chapter.CourseID != courseID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chapter not found")
	}
	return chapter, nil
}

func chapterIDs(rows []models.Chapter) map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		ids[row.ID] = struct{}{}
	}
	return ids
}

// validateReorder enforces the all-or-nothing reorder contract shared by
// chapters and lessons.
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
