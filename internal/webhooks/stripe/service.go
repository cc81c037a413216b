package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/subscriptions"
	dbpkg "github.com/learnhub-app/learnhub-backend/pkg/db"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
)

type subscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
}

type enrollmentRepository interface {
	CreateWithTx(tx *gorm.DB, enrollment *models.Enrollment) error
	FindByUserAndCourseWithTx(tx *gorm.DB, userID, courseID uuid.UUID) (*models.Enrollment, error)
}

type paymentRepository interface {
	CreateWithTx(tx *gorm.DB, payment *models.Payment) error
}

type courseRepository interface {
	IncrementStudentsWithTx(tx *gorm.DB, id uuid.UUID) error
}

type stripeSubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	SubscriptionRepo subscriptionRepository
	EnrollmentRepo   enrollmentRepository
	PaymentRepo      paymentRepository
	CourseRepo       courseRepository
	StripeClient     stripeSubscriptionFetcher
	Catalog          subscriptions.PlanCatalog
	Outbox           outboxEmitter
	DB               txRunner
}

// Service reconciles Stripe webhook events against local billing and
// enrollment state. Every handler tolerates redelivery.
type Service struct {
	subs     subscriptionRepository
	enrolls  enrollmentRepository
	payments paymentRepository
	courses  courseRepository
	stripe   stripeSubscriptionFetcher
	catalog  subscriptions.PlanCatalog
	outbox   outboxEmitter
	tx       txRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.SubscriptionRepo == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if params.EnrollmentRepo == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if params.PaymentRepo == nil {
		return nil, fmt.Errorf("payment repository is required")
	}
	if params.CourseRepo == nil {
		return nil, fmt.Errorf("course repository is required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &Service{
		subs:     params.SubscriptionRepo,
		enrolls:  params.EnrollmentRepo,
		payments: params.PaymentRepo,
		courses:  params.CourseRepo,
		stripe:   params.StripeClient,
		catalog:  params.Catalog,
		outbox:   params.Outbox,
		tx:       params.DB,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeInvoicePaymentSucceeded:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			// One-off invoices carry no subscription; nothing to sync.
			return nil
		}
		return s.refreshFromStripe(ctx, subscriptionID)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.downgradeSubscription(ctx, stripeSub.ID)
	default:
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	switch session.Mode {
	case stripe.CheckoutSessionModeSubscription:
		if session.Subscription == nil || session.Subscription.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session lacks a subscription")
		}
		userID, err := userIDFromMetadata(session.Metadata)
		if err != nil {
			return err
		}
		stripeSub, err := s.stripe.GetSubscription(ctx, session.Subscription.ID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.applyToUser(ctx, userID, stripeSub)
	case stripe.CheckoutSessionModePayment:
		if session.Metadata["type"] != subscriptions.MetadataTypeCoursePurchase {
			return nil
		}
		return s.settleCoursePurchase(ctx, session)
	}
	return nil
}

// settleCoursePurchase enrolls the buyer and records the payment in one
// transaction. A redelivered event finds the enrollment and stops.
func (s *Service) settleCoursePurchase(ctx context.Context, session *stripe.CheckoutSession) error {
	userID, err := userIDFromMetadata(session.Metadata)
	if err != nil {
		return err
	}
	courseID, err := uuid.Parse(session.Metadata["course_id"])
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "course_id metadata missing or malformed")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.enrolls.FindByUserAndCourseWithTx(tx, userID, courseID); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check enrollment")
		}

		now := time.Now()
		enrollment := &models.Enrollment{
			ID:       uuid.New(),
			UserID:   userID,
			CourseID: courseID,
			Status:   enums.EnrollmentStatusActive,
		}
		if err := s.enrolls.CreateWithTx(tx, enrollment); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_enrollments_user_course") {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create enrollment")
		}

		payment := &models.Payment{
			ID:              uuid.New(),
			UserID:          userID,
			CourseID:        courseID,
			StripeSessionID: session.ID,
			Amount:          decimal.NewFromInt(session.AmountTotal).Div(decimal.NewFromInt(100)),
			Currency:        string(session.Currency),
			Status:          enums.PaymentStatusCompleted,
			CompletedAt:     &now,
		}
		if err := s.payments.CreateWithTx(tx, payment); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_payments_stripe_session_id") {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
		}

		if err := s.courses.IncrementStudentsWithTx(tx, courseID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment student count")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventEnrollmentCreated,
			AggregateType: enums.OutboxAggregateEnrollment,
			AggregateID:   enrollment.ID,
			Data: purchaseEnrollmentPayload{
				UserID:          userID,
				CourseID:        courseID,
				StripeSessionID: session.ID,
			},
		})
	})
}

// refreshFromStripe re-reads the subscription and syncs the local row.
func (s *Service) refreshFromStripe(ctx context.Context, stripeSubID string) error {
	stripeSub, err := s.stripe.GetSubscription(ctx, stripeSubID, &stripe.SubscriptionParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
	}
	return s.syncSubscription(ctx, stripeSub)
}

// syncSubscription maps the Stripe subscription onto the local row
// matched by stripe subscription id. Unknown subscriptions are ignored;
// checkout.session.completed is the event that binds them to a user.
func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	stored, err := s.subs.FindByStripeSubscriptionID(ctx, stripeSub.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	s.applyStripeState(stored, stripeSub)
	if err := s.subs.Update(ctx, stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
	}
	return nil
}

// applyToUser binds the Stripe subscription to the user's row, creating
// the row when checkout raced ahead of the local bootstrap.
func (s *Service) applyToUser(ctx context.Context, userID uuid.UUID, stripeSub *stripe.Subscription) error {
	stored, err := s.subs.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stored = &models.Subscription{ID: uuid.New(), UserID: userID}
		s.applyStripeState(stored, stripeSub)
		if err := s.subs.Create(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
		}
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	s.applyStripeState(stored, stripeSub)
	if err := s.subs.Update(ctx, stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
	}
	return nil
}

func (s *Service) downgradeSubscription(ctx context.Context, stripeSubID string) error {
	stored, err := s.subs.FindByStripeSubscriptionID(ctx, stripeSubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	now := time.Now()
	stored.Plan = enums.SubscriptionPlanFree
	stored.Status = enums.SubscriptionStatusCanceled
	stored.StripeSubscriptionID = nil
	stored.StripePriceID = nil
	stored.CancelAtPeriodEnd = false
	stored.CanceledAt = &now
	if err := s.subs.Update(ctx, stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "downgrade subscription")
	}
	return nil
}

func (s *Service) applyStripeState(target *models.Subscription, stripeSub *stripe.Subscription) {
	subID := stripeSub.ID
	target.StripeSubscriptionID = &subID

	priceID := priceIDOf(stripeSub)
	if priceID != "" {
		target.StripePriceID = &priceID
	}
	target.Plan = s.catalog.PlanForPriceID(priceID)
	target.Status = subscriptions.MapStripeStatus(stripeSub.Status)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	if end := periodEndOf(stripeSub); end != nil {
		target.CurrentPeriodEnd = end
	}
	if stripeSub.CanceledAt > 0 {
		canceled := time.Unix(stripeSub.CanceledAt, 0)
		target.CanceledAt = &canceled
	}
}

func priceIDOf(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

// periodEndOf reads the current period end, which Stripe reports per
// subscription item.
func periodEndOf(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	if ts := sub.Items.Data[0].CurrentPeriodEnd; ts > 0 {
		end := time.Unix(ts, 0)
		return &end
	}
	return nil
}

type purchaseEnrollmentPayload struct {
	UserID          uuid.UUID `json:"userId"`
	CourseID        uuid.UUID `json:"courseId"`
	StripeSessionID string    `json:"stripeSessionId"`
}

func userIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	id, err := uuid.Parse(metadata["user_id"])
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id metadata missing or malformed")
	}
	return id, nil
}
