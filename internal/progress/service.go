package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
)

// ToggleResult reports the outcome of a progress toggle. CourseCompleted
// is true when every trackable lesson of the course is now complete.
type ToggleResult struct {
	LessonID        uuid.UUID `json:"lesson_id"`
	IsCompleted     bool      `json:"is_completed"`
	CourseCompleted bool      `json:"course_completed"`
}

// CourseProgressDTO summarizes a learner's standing in a course.
type CourseProgressDTO struct {
	Completed  int64 `json:"completed"`
	Total      int64 `json:"total"`
	Percentage int   `json:"percentage"`
}

// Service exposes lesson progress tracking.
type Service interface {
	Toggle(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (*ToggleResult, error)
	CourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*CourseProgressDTO, error)
}

type progressRepository interface {
	UpsertWithTx(tx *gorm.DB, row *models.UserProgress) error
	CountCompletedWithTx(tx *gorm.DB, userID, courseID uuid.UUID) (int64, error)
	CountTrackableWithTx(tx *gorm.DB, courseID uuid.UUID) (int64, error)
	Counts(ctx context.Context, userID, courseID uuid.UUID) (completed, total int64, err error)
}

type lessonReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
}

type chapterReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Chapter, error)
}

type enrollmentRepository interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	MarkCompletedWithTx(tx *gorm.DB, id uuid.UUID, completedAt time.Time) error
}

type certificateIssuer interface {
	IssueIfAbsent(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*models.Certificate, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        progressRepository
	lessonRepo  lessonReader
	chapterRepo chapterReader
	enrollments enrollmentRepository
	certs       certificateIssuer
	outbox      outboxEmitter
	tx          txRunner
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo        progressRepository
	LessonRepo  lessonReader
	ChapterRepo chapterReader
	Enrollments enrollmentRepository
	Certs       certificateIssuer
	Outbox      outboxEmitter
	DB          txRunner
}

// NewService constructs a progress service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("progress repository is required")
	}
	if params.LessonRepo == nil {
		return nil, fmt.Errorf("lesson repository is required")
	}
	if params.ChapterRepo == nil {
		return nil, fmt.Errorf("chapter repository is required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if params.Certs == nil {
		return nil, fmt.Errorf("certificate service is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	return &service{
		repo:        params.Repo,
		lessonRepo:  params.LessonRepo,
		chapterRepo: params.ChapterRepo,
		enrollments: params.Enrollments,
		certs:       params.Certs,
		outbox:      params.Outbox,
		tx:          params.DB,
	}, nil
}

// courseCompletedPayload is the outbox data for course.completed.
type courseCompletedPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	CourseID uuid.UUID `json:"course_id"`
}

// Toggle records the completion state of a lesson. Completing the last
// trackable lesson finishes the enrollment and issues the certificate in
// the same transaction. Marking a lesson incomplete afterwards never
// reverts a finished enrollment.
func (s *service) Toggle(ctx context.Context, userID, lessonID uuid.UUID, completed bool) (*ToggleResult, error) {
	lesson, err := s.lessonRepo.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lesson not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load lesson")
	}
	chapter, err := s.chapterRepo.FindByID(ctx, lesson.ChapterID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load chapter")
	}
	courseID := chapter.CourseID

	enrollment, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "not enrolled in this course")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load enrollment")
	}

	result := &ToggleResult{LessonID: lessonID, IsCompleted: completed}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		row := &models.UserProgress{
			ID:          uuid.New(),
			UserID:      userID,
			LessonID:    lessonID,
			IsCompleted: completed,
		}
		if completed {
			row.CompletedAt = &now
		}
		if err := s.repo.UpsertWithTx(tx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record progress")
		}
		if !completed {
			return nil
		}

		done, err := s.repo.CountCompletedWithTx(tx, userID, courseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count completed lessons")
		}
		total, err := s.repo.CountTrackableWithTx(tx, courseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count trackable lessons")
		}
		if total == 0 || done < total {
			return nil
		}

		result.CourseCompleted = true
		if enrollment.Status != enums.EnrollmentStatusCompleted {
			if err := s.enrollments.MarkCompletedWithTx(tx, enrollment.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete enrollment")
			}
		}
		if _, err := s.certs.IssueIfAbsent(ctx, tx, userID, courseID); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventCourseCompleted,
			AggregateType: enums.OutboxAggregateEnrollment,
			AggregateID:   enrollment.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleStudent)},
			Data:          courseCompletedPayload{UserID: userID, CourseID: courseID},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "toggle progress")
	}
	return result, nil
}

// CourseProgress reports completed/total counts for the caller's
// enrollment. A course with no trackable lessons reports zeroes.
func (s *service) CourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*CourseProgressDTO, error) {
	if _, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "not enrolled in this course")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load enrollment")
	}

	completed, total, err := s.repo.Counts(ctx, userID, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute progress")
	}
	dto := &CourseProgressDTO{Completed: completed, Total: total}
	if total > 0 {
		dto.Percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return dto, nil
}
