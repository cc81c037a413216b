package enrollments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/learnhub-app/learnhub-backend/pkg/db"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
)

// Service exposes enrollment operations.
type Service interface {
	Enroll(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (*EnrollmentDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]EnrolledCourseDTO, error)
}

type enrollmentRepository interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]EnrolledCourseRow, error)
}

type courseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	IncrementStudentsWithTx(tx *gorm.DB, id uuid.UUID) error
}

type subscriptionReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        enrollmentRepository
	courseRepo  courseRepository
	subs        subscriptionReader
	outbox      outboxEmitter
	tx          txRunner
	freePlanMax int
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo        enrollmentRepository
	CourseRepo  courseRepository
	Subs        subscriptionReader
	Outbox      outboxEmitter
	DB          txRunner
	FreePlanMax int
}

// NewService constructs an enrollment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if params.CourseRepo == nil {
		return nil, fmt.Errorf("course repository is required")
	}
	if params.Subs == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.FreePlanMax <= 0 {
		return nil, fmt.Errorf("free plan enrollment cap must be positive")
	}
	return &service{
		repo:        params.Repo,
		courseRepo:  params.CourseRepo,
		subs:        params.Subs,
		outbox:      params.Outbox,
		tx:          params.DB,
		freePlanMax: params.FreePlanMax,
	}, nil
}

// enrollmentCreatedPayload is the outbox data for enrollment.created.
type enrollmentCreatedPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	CourseID uuid.UUID `json:"course_id"`
}

// Enroll creates an ACTIVE enrollment for a published free course. Paid
// courses must go through Stripe Checkout; the webhook enrolls on
// settlement.
func (s *service) Enroll(ctx context.Context, userID uuid.UUID, courseID uuid.UUID) (*EnrollmentDTO, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load course")
	}
	if course.Status != enums.CourseStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}

	if _, err := s.repo.FindByUserAndCourse(ctx, userID, courseID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already enrolled in this course")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check enrollment")
	}

	if !course.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "this course requires purchase")
	}

	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		ID:       uuid.New(),
		UserID:   userID,
		CourseID: courseID,
		Status:   enums.EnrollmentStatusActive,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if err := repo.CreateWithTx(tx, enrollment); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_enrollments_user_course") {
				return pkgerrors.New(pkgerrors.CodeConflict, "already enrolled in this course")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create enrollment")
		}
		if err := s.courseRepo.IncrementStudentsWithTx(tx, courseID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment student count")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventEnrollmentCreated,
			AggregateType: enums.OutboxAggregateEnrollment,
			AggregateID:   enrollment.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleStudent)},
			Data:          enrollmentCreatedPayload{UserID: userID, CourseID: courseID},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enroll")
	}

	return &EnrollmentDTO{
		ID:         enrollment.ID,
		CourseID:   enrollment.CourseID,
		Status:     enrollment.Status,
		EnrolledAt: enrollment.CreatedAt,
	}, nil
}

// ListMine returns the caller's enrollments with course display fields.
func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]EnrolledCourseDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list enrollments")
	}
	out := make([]EnrolledCourseDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// checkQuota enforces the FREE plan enrollment cap. A missing
// subscription row counts as FREE.
func (s *service) checkQuota(ctx context.Context, userID uuid.UUID) error {
	entitled := false
	sub, err := s.subs.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		entitled = sub.Plan != enums.SubscriptionPlanFree && sub.Status.IsEntitled()
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if entitled {
		return nil
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count enrollments")
	}
	if count >= int64(s.freePlanMax) {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded,
			fmt.Sprintf("free plan allows %d enrollments; upgrade to Pro for unlimited courses", s.freePlanMax))
	}
	return nil
}
