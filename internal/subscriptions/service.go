package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

// CheckoutMetadataType distinguishes checkout sessions in webhook
// handling.
const (
	MetadataTypeCoursePurchase = "course_purchase"
	MetadataTypeSubscription   = "subscription"
)

var centsPerUnit = decimal.NewFromInt(100)

// Service exposes Stripe-backed billing operations.
type Service interface {
	CreateSubscriptionCheckout(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, interval BillingInterval) (*CheckoutDTO, error)
	CreateCourseCheckout(ctx context.Context, userID, courseID uuid.UUID) (*CheckoutDTO, error)
	BillingPortal(ctx context.Context, userID uuid.UUID) (*CheckoutDTO, error)
	Current(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error)
}

type subscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type enrollmentChecker interface {
	FindByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
}

type service struct {
	repo        subscriptionRepository
	users       userRepository
	courses     courseReader
	enrollments enrollmentChecker
	stripe      StripeBillingClient
	catalog     PlanCatalog
	baseURL     string
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo        subscriptionRepository
	Users       userRepository
	Courses     courseReader
	Enrollments enrollmentChecker
	Stripe      StripeBillingClient
	Catalog     PlanCatalog
	BaseURL     string
}

// NewService constructs a billing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Courses == nil {
		return nil, fmt.Errorf("course repository is required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	if params.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	return &service{
		repo:        params.Repo,
		users:       params.Users,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		stripe:      params.Stripe,
		catalog:     params.Catalog,
		baseURL:     params.BaseURL,
	}, nil
}

func (s *service) CreateSubscriptionCheckout(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, interval BillingInterval) (*CheckoutDTO, error) {
	if plan == enums.SubscriptionPlanFree || !plan.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not purchasable")
	}
	if !interval.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing interval must be monthly or yearly")
	}
	priceID := s.catalog.PriceID(plan, interval)
	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is not configured for sale")
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureLocalRow(ctx, userID); err != nil {
		return nil, err
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/billing/cancel"),
		Metadata: map[string]string{
			"user_id": userID.String(),
			"type":    MetadataTypeSubscription,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription checkout")
	}
	return &CheckoutDTO{SessionID: session.ID, URL: session.URL}, nil
}

func (s *service) CreateCourseCheckout(ctx context.Context, userID, courseID uuid.UUID) (*CheckoutDTO, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load course")
	}
	if course.Status != enums.CourseStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	if course.IsFree() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free courses do not require checkout")
	}

	if _, err := s.enrollments.FindByUserAndCourse(ctx, userID, courseID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already enrolled in this course")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check enrollment")
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	amountCents := course.Price.Mul(centsPerUnit).IntPart()
	session, err := s.stripe.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("usd"),
				UnitAmount: stripe.Int64(amountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(course.Title),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.baseURL + "/courses/" + course.Slug + "?purchase=success"),
		CancelURL:  stripe.String(s.baseURL + "/courses/" + course.Slug),
		Metadata: map[string]string{
			"user_id":   userID.String(),
			"course_id": courseID.String(),
			"type":      MetadataTypeCoursePurchase,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create course checkout")
	}
	return &CheckoutDTO{SessionID: session.ID, URL: session.URL}, nil
}

func (s *service) BillingPortal(ctx context.Context, userID uuid.UUID) (*CheckoutDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no billing profile yet")
	}

	session, err := s.stripe.CreatePortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(s.baseURL + "/billing"),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return &CheckoutDTO{URL: session.URL}, nil
}

func (s *service) Current(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FromModel(nil), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	return FromModel(sub), nil
}

// ensureCustomer creates the Stripe customer on first billing contact
// and persists its id on the user.
func (s *service) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customer, err := s.stripe.CreateCustomer(ctx, &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store customer id")
	}
	return customer.ID, nil
}

// ensureLocalRow guarantees the user has a subscription row before the
// webhook upgrades it.
func (s *service) ensureLocalRow(ctx context.Context, userID uuid.UUID) error {
	_, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	sub := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		Plan:   enums.SubscriptionPlanFree,
		Status: enums.SubscriptionStatusActive,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription row")
	}
	return nil
}
