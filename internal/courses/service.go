package courses

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
	"github.com/learnhub-app/learnhub-backend/pkg/pagination"
)

// Service exposes course lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateCourseInput) (*CourseDTO, error)
	Update(ctx context.Context, actor Actor, courseID uuid.UUID, input UpdateCourseInput) (*CourseDTO, error)
	GetByID(ctx context.Context, actor *Actor, courseID uuid.UUID) (*CourseDTO, error)
	GetBySlug(ctx context.Context, actor *Actor, slug string) (*CourseDTO, error)
	ListCatalog(ctx context.Context, filter ListFilter) (*CourseListPage, error)
	ListMine(ctx context.Context, actor Actor) ([]CourseDTO, error)
	Publish(ctx context.Context, actor Actor, courseID uuid.UUID) (*CourseDTO, error)
	Unpublish(ctx context.Context, actor Actor, courseID uuid.UUID) (*CourseDTO, error)
	Archive(ctx context.Context, actor Actor, courseID uuid.UUID) (*CourseDTO, error)
	Delete(ctx context.Context, actor Actor, courseID uuid.UUID) error
}

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CanModify reports whether the actor may mutate the course. Archived
// courses are frozen for everyone but admins.
func CanModify(actor Actor, course *models.Course) bool {
	if course == nil {
		return false
	}
	if actor.Role == enums.UserRoleAdmin {
		return true
	}
	if course.Status == enums.CourseStatusArchived {
		return false
	}
	return actor.Role == enums.UserRoleInstructor && course.InstructorID == actor.UserID
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	FindBySlug(ctx context.Context, slug string) (*models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByInstructor(ctx context.Context, instructorID uuid.UUID) ([]models.Course, error)
	ListPublished(ctx context.Context, filter ListFilter) ([]models.Course, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   courseRepository
	tx     txRunner
	outbox outboxEmitter
}

// ServiceParams bundles the dependencies required to build a course service.
type ServiceParams struct {
	Repo   courseRepository
	DB     txRunner
	Outbox outboxEmitter
}

// NewService constructs a course service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("course repository is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.DB,
		outbox: params.Outbox,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateCourseInput) (*CourseDTO, error) {
	if actor.Role != enums.UserRoleInstructor && actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only instructors can create courses")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Price != nil && input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	slug := newSlug(title)

	course := &models.Course{
		InstructorID: actor.UserID,
		CategoryID:   input.CategoryID,
		Title:        title,
		Slug:         slug,
		Description:  input.Description,
		Price:        input.Price,
		Status:       enums.CourseStatusDraft,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if db.IsUniqueViolation(err, "ux_courses_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "course slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create course")
	}
	return FromModel(course), nil
}

func (s *service) Update(ctx context.Context, actor Actor, courseID uuid.UUID, input UpdateCourseInput) (*CourseDTO, error) {
	course, err := s.loadForModify(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		course.Title = title
	}
	if input.Description != nil {
		course.Description = input.Description
	}
	if input.ImageURL != nil {
		course.ImageURL = input.ImageURL
	}
	if input.CategoryID != nil {
		course.CategoryID = input.CategoryID
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		course.Price = input.Price
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update course")
	}
	return FromModel(course), nil
}

func (s *service) GetByID(ctx context.Context, actor *Actor, courseID uuid.UUID) (*CourseDTO, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	if err := checkReadable(actor, course); err != nil {
		return nil, err
	}
	return FromModel(course), nil
}

func (s *service) GetBySlug(ctx context.Context, actor *Actor, slug string) (*CourseDTO, error) {
	course, err := s.repo.FindBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	if err := checkReadable(actor, course); err != nil {
		return nil, err
	}
	return FromModel(course), nil
}

func (s *service) ListCatalog(ctx context.Context, filter ListFilter) (*CourseListPage, error) {
	rows, err := s.repo.ListPublished(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list courses")
	}
	return buildPage(rows, filter.Limit), nil
}

func (s *service) ListMine(ctx context.Context, actor Actor) ([]CourseDTO, error) {
	rows, err := s.repo.ListByInstructor(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list instructor courses")
	}
	return FromModels(rows), nil
}

// Publish validates eligibility, snapshots the published counters, and
// flips the course to PUBLISHED inside one transaction.
func (s *service) Publish(ctx context.Context, actor Actor, courseID uuid.UUID) (*CourseDTO, error) {
	var published *models.Course
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		course, err := repo.FindByIDWithTx(tx, courseID)
		if err != nil {
			return notFoundOrInternal(err, "course")
		}
		if !CanModify(actor, course) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify this course")
		}
		if course.Status == enums.CourseStatusPublished {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "course is already published")
		}

		if missing := missingPublishFields(course); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "course is missing required fields").
				WithDetails(map[string]any{"missing": missing})
		}

		counts, err := repo.countPublishableTx(tx, courseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count publishable content")
		}
		if counts.ChaptersWithPublished == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "course needs at least one published chapter with a published lesson")
		}

		now := time.Now().UTC()
		course.Status = enums.CourseStatusPublished
		course.TotalChapters = int(counts.PublishedChapters)
		course.TotalLessons = int(counts.PublishedLessons)
		course.TotalDuration = int(counts.PublishedDuration)
		if course.PublishedAt == nil {
			course.PublishedAt = &now
		}
		if err := repo.UpdateWithTx(tx, course); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "publish course")
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.OutboxEventCoursePublished,
				AggregateType: enums.OutboxAggregateCourse,
				AggregateID:   course.ID,
				Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
				Data: map[string]any{
					"courseId": course.ID,
					"slug":     course.Slug,
				},
				Version: 1,
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit course published event")
			}
		}

		published = course
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(published), nil
}

// Unpublish returns the course to DRAFT. Counter snapshots keep their
// last published values.
func (s *service) Unpublish(ctx context.Context, actor Actor, courseID uuid.UUID) (*CourseDTO, error) {
	course, err := s.loadForModify(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != enums.CourseStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "course is not published")
	}

	course.Status = enums.CourseStatusDraft
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unpublish course")
	}
	return FromModel(course), nil
}

func (s *service) Archive(ctx context.Context, actor Actor, courseID uuid.UUID) (*CourseDTO, error) {
	course, err := s.loadForModify(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status == enums.CourseStatusArchived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "course is already archived")
	}

	course.Status = enums.CourseStatusArchived
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive course")
	}
	return FromModel(course), nil
}

func (s *service) Delete(ctx context.Context, actor Actor, courseID uuid.UUID) error {
	course, err := s.loadForModify(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if course.TotalStudents > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "course has enrolled students and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, courseID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete course")
	}
	return nil
}

func (s *service) loadForModify(ctx context.Context, actor Actor, courseID uuid.UUID) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course")
	}
	if !CanModify(actor, course) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify this course")
	}
	return course, nil
}

func missingPublishFields(course *models.Course) []string {
	missing := []string{}
	if strings.TrimSpace(course.Title) == "" {
		missing = append(missing, "title")
	}
	if course.Description == nil || strings.TrimSpace(*course.Description) == "" {
		missing = append(missing, "description")
	}
	if course.ImageURL == nil || strings.TrimSpace(*course.ImageURL) == "" {
		missing = append(missing, "image_url")
	}
	if course.CategoryID == nil {
		missing = append(missing, "category_id")
	}
	return missing
}

func checkReadable(actor *Actor, course *models.Course) error {
	if course.Status == enums.CourseStatusPublished {
		return nil
	}
	if actor != nil {
		if actor.Role == enums.UserRoleAdmin || course.InstructorID == actor.UserID {
			return nil
		}
	}
	// Hide unpublished content from everyone else.
	return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
}

func buildPage(rows []models.Course, limit int) *CourseListPage {
	pageSize := pagination.NormalizeLimit(limit)
	page := &CourseListPage{}
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	page.Courses = FromModels(rows)
	return page
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStripRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// newSlug derives a URL slug from the title plus a base36 time suffix so
// repeated titles never collide.
func newSlug(title string) string {
	base := slugify(title)
	if base == "" {
		base = "course"
	}
	return base + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36)
}

func notFoundOrInternal(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+entity)
}
