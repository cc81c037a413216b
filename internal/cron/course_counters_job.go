package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type courseCountersRepository interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Course, error)
	ComputeCountersWithTx(tx *gorm.DB, courseID uuid.UUID) (*courses.Counters, error)
	UpdateCountersWithTx(tx *gorm.DB, courseID uuid.UUID, counters courses.Counters) error
}

// CourseCountersJobParams configure the counter reconciliation job.
type CourseCountersJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	CourseRepo courseCountersRepository
}

// NewCourseCountersJob builds the job that recomputes the denormalized
// course counters from the base tables. Deletion paths decrement
// nothing, so the stored totals drift until this runs.
func NewCourseCountersJob(params CourseCountersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.CourseRepo == nil {
		return nil, fmt.Errorf("course repository required")
	}
	return &courseCountersJob{
		logg:    params.Logger,
		db:      params.DB,
		courses: params.CourseRepo,
	}, nil
}

type courseCountersJob struct {
	logg    *logger.Logger
	db      txRunner
	courses courseCountersRepository
}

func (j *courseCountersJob) Name() string { return "course-counters-reconcile" }

func (j *courseCountersJob) Run(ctx context.Context) error {
	ids, err := j.courses.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}

	var errs error
	reconciled := 0
	for _, id := range ids {
		changed, err := j.reconcileCourse(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("course %s: %w", id, err))
			continue
		}
		if changed {
			reconciled++
		}
	}

	logCtx := j.logg.WithField(ctx, "courses_checked", len(ids))
	logCtx = j.logg.WithField(logCtx, "courses_reconciled", reconciled)
	j.logg.Info(logCtx, "course counters reconciled")
	return errs
}

// reconcileCourse recomputes one course's counters and rewrites them
// only when they drifted.
func (j *courseCountersJob) reconcileCourse(ctx context.Context, id uuid.UUID) (bool, error) {
	changed := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		course, err := j.courses.FindByIDWithTx(tx, id)
		if err != nil {
			return err
		}
		counters, err := j.courses.ComputeCountersWithTx(tx, id)
		if err != nil {
			return err
		}
		if course.TotalChapters == counters.Chapters &&
			course.TotalLessons == counters.Lessons &&
			course.TotalStudents == counters.Students &&
			course.TotalDuration == counters.Duration {
			return nil
		}
		changed = true
		return j.courses.UpdateCountersWithTx(tx, id, *counters)
	})
	return changed, err
}
