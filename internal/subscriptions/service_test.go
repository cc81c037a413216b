package subscriptions

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/internal/users"
	"github.com/learnhub-app/learnhub-backend/pkg/config"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

func testCatalog() PlanCatalog {
	return NewPlanCatalog(config.StripeConfig{
		ProMonthlyPriceID:        "price_pro_m",
		ProYearlyPriceID:         "price_pro_y",
		EnterpriseMonthlyPriceID: "price_ent_m",
		EnterpriseYearlyPriceID:  "price_ent_y",
	})
}

func TestPlanCatalogRoundTrip(t *testing.T) {
	catalog := testCatalog()

	assert.Equal(t, "price_pro_m", catalog.PriceID(enums.SubscriptionPlanPro, BillingIntervalMonthly))
	assert.Equal(t, "price_ent_y", catalog.PriceID(enums.SubscriptionPlanEnterprise, BillingIntervalYearly))
	assert.Empty(t, catalog.PriceID(enums.SubscriptionPlanFree, BillingIntervalMonthly))

	assert.Equal(t, enums.SubscriptionPlanPro, catalog.PlanForPriceID("price_pro_y"))
	assert.Equal(t, enums.SubscriptionPlanEnterprise, catalog.PlanForPriceID("price_ent_m"))
	assert.Equal(t, enums.SubscriptionPlanFree, catalog.PlanForPriceID("price_unknown"))
	assert.Equal(t, enums.SubscriptionPlanFree, catalog.PlanForPriceID(""))
}

func TestMapStripeStatus(t *testing.T) {
	cases := map[stripe.SubscriptionStatus]enums.SubscriptionStatus{
		stripe.SubscriptionStatusActive:            enums.SubscriptionStatusActive,
		stripe.SubscriptionStatusTrialing:          enums.SubscriptionStatusTrialing,
		stripe.SubscriptionStatusPastDue:           enums.SubscriptionStatusPastDue,
		stripe.SubscriptionStatusCanceled:          enums.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusIncompleteExpired: enums.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusUnpaid:            enums.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatus("made_up_later"): enums.SubscriptionStatusActive,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapStripeStatus(in), string(in))
	}
}

type stubStripeClient struct {
	customers        int
	lastCheckout     *stripe.CheckoutSessionParams
	lastPortalCust   string
	subscriptionByID map[string]*stripe.Subscription
}

func (s *stubStripeClient) CreateCustomer(_ context.Context, _ *stripe.CustomerParams) (*stripe.Customer, error) {
	s.customers++
	return &stripe.Customer{ID: fmt.Sprintf("cus_%d", s.customers)}, nil
}

func (s *stubStripeClient) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.lastCheckout = params
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"}, nil
}

func (s *stubStripeClient) CreatePortalSession(_ context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	s.lastPortalCust = stripe.StringValue(params.Customer)
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.com/session/xyz"}, nil
}

func (s *stubStripeClient) GetSubscription(_ context.Context, id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if sub, ok := s.subscriptionByID[id]; ok {
		return sub, nil
	}
	return nil, fmt.Errorf("no such subscription %q", id)
}

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'STUDENT',
  avatar_url TEXT,
  bio TEXT,
  stripe_customer_id TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
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
		`CREATE TABLE enrollments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT idx_enrollments_user_course UNIQUE (user_id, course_id)
);`,
		`CREATE TABLE subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  stripe_subscription_id TEXT,
  stripe_price_id TEXT,
  plan TEXT NOT NULL DEFAULT 'FREE',
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  current_period_end DATETIME,
  cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
  canceled_at DATETIME,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type enrollmentRepoAdapter struct {
	db *gorm.DB
}

func (a enrollmentRepoAdapter) FindByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

type billingFixture struct {
	svc    Service
	db     *gorm.DB
	stripe *stubStripeClient
	user   *models.User
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	db := setupBillingTestDB(t)
	stub := &stubStripeClient{subscriptionByID: map[string]*stripe.Subscription{}}

	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(db),
		Users:       users.NewRepository(db),
		Courses:     courses.NewRepository(db),
		Enrollments: enrollmentRepoAdapter{db: db},
		Stripe:      stub,
		Catalog:     testCatalog(),
		BaseURL:     "https://learnhub.example.com",
	})
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString()[:8] + "@example.com",
		Name:         "Student",
		PasswordHash: "x",
		Role:         enums.UserRoleStudent,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	return &billingFixture{svc: svc, db: db, stripe: stub, user: user}
}

func TestSubscriptionCheckoutBootstrapsBilling(t *testing.T) {
	f := newBillingFixture(t)

	dto, err := f.svc.CreateSubscriptionCheckout(context.Background(), f.user.ID, enums.SubscriptionPlanPro, BillingIntervalMonthly)
	require.NoError(t, err)
	assert.NotEmpty(t, dto.URL)

	// The user now has a Stripe customer id and a local FREE row.
	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", f.user.ID).Error)
	require.NotNil(t, stored.StripeCustomerID)

	sub, err := NewRepository(f.db).FindByUserID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanFree, sub.Plan)

	require.NotNil(t, f.stripe.lastCheckout)
	assert.Equal(t, "price_pro_m", stripe.StringValue(f.stripe.lastCheckout.LineItems[0].Price))
	assert.Equal(t, MetadataTypeSubscription, f.stripe.lastCheckout.Metadata["type"])

	// A second checkout reuses the customer instead of minting another.
	_, err = f.svc.CreateSubscriptionCheckout(context.Background(), f.user.ID, enums.SubscriptionPlanPro, BillingIntervalYearly)
	require.NoError(t, err)
	assert.Equal(t, 1, f.stripe.customers)
}

func TestSubscriptionCheckoutRejectsFreePlan(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.svc.CreateSubscriptionCheckout(context.Background(), f.user.ID, enums.SubscriptionPlanFree, BillingIntervalMonthly)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCourseCheckoutCarriesPurchaseMetadata(t *testing.T) {
	f := newBillingFixture(t)
	price := decimal.NewFromFloat(49.99)
	course := &models.Course{
		ID:           uuid.New(),
		InstructorID: uuid.New(),
		Title:        "Databases",
		Slug:         "databases-" + uuid.NewString()[:8],
		Status:       enums.CourseStatusPublished,
		Price:        &price,
	}
	require.NoError(t, f.db.Create(course).Error)

	dto, err := f.svc.CreateCourseCheckout(context.Background(), f.user.ID, course.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, dto.URL)

	require.NotNil(t, f.stripe.lastCheckout)
	item := f.stripe.lastCheckout.LineItems[0]
	assert.EqualValues(t, 4999, stripe.Int64Value(item.PriceData.UnitAmount))
	assert.Equal(t, MetadataTypeCoursePurchase, f.stripe.lastCheckout.Metadata["type"])
	assert.Equal(t, course.ID.String(), f.stripe.lastCheckout.Metadata["course_id"])
}

func TestCourseCheckoutRejectsFreeAndEnrolled(t *testing.T) {
	f := newBillingFixture(t)

	free := &models.Course{
		ID:           uuid.New(),
		InstructorID: uuid.New(),
		Title:        "Intro",
		Slug:         "intro-" + uuid.NewString()[:8],
		Status:       enums.CourseStatusPublished,
	}
	require.NoError(t, f.db.Create(free).Error)

	_, err := f.svc.CreateCourseCheckout(context.Background(), f.user.ID, free.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	price := decimal.NewFromFloat(20)
	paid := &models.Course{
		ID:           uuid.New(),
		InstructorID: uuid.New(),
		Title:        "Paid",
		Slug:         "paid-" + uuid.NewString()[:8],
		Status:       enums.CourseStatusPublished,
		Price:        &price,
	}
	require.NoError(t, f.db.Create(paid).Error)
	require.NoError(t, f.db.Create(&models.Enrollment{
		ID:       uuid.New(),
		UserID:   f.user.ID,
		CourseID: paid.ID,
		Status:   enums.EnrollmentStatusActive,
	}).Error)

	_, err = f.svc.CreateCourseCheckout(context.Background(), f.user.ID, paid.ID)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestBillingPortalRequiresProfile(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.svc.BillingPortal(context.Background(), f.user.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	custID := "cus_existing"
	require.NoError(t, f.db.Model(&models.User{}).
		Where("id = ?", f.user.ID).
		Update("stripe_customer_id", custID).Error)

	dto, err := f.svc.BillingPortal(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, dto.URL)
	assert.Equal(t, custID, f.stripe.lastPortalCust)
}

func TestCurrentDefaultsToFree(t *testing.T) {
	f := newBillingFixture(t)

	dto, err := f.svc.Current(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanFree, dto.Plan)
	assert.Equal(t, enums.SubscriptionStatusActive, dto.Status)
}
