package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/internal/enrollments"
	"github.com/learnhub-app/learnhub-backend/internal/payments"
	"github.com/learnhub-app/learnhub-backend/internal/subscriptions"
	"github.com/learnhub-app/learnhub-backend/pkg/config"
	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	"github.com/learnhub-app/learnhub-backend/pkg/outbox"
)

func setupStripeWebhookTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  course_id TEXT NOT NULL,
  stripe_session_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  status TEXT NOT NULL DEFAULT 'PENDING',
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_payments_stripe_session_id UNIQUE (stripe_session_id)
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
		`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type webhookTxRunner struct {
	db *gorm.DB
}

func (r webhookTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type stubSubscriptionFetcher struct {
	byID  map[string]*stripe.Subscription
	calls int
}

func (s *stubSubscriptionFetcher) GetSubscription(_ context.Context, id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.calls++
	sub, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	return sub, nil
}

func webhookCatalog() subscriptions.PlanCatalog {
	return subscriptions.NewPlanCatalog(config.StripeConfig{
		ProMonthlyPriceID:        "price_pro_m",
		ProYearlyPriceID:         "price_pro_y",
		EnterpriseMonthlyPriceID: "price_ent_m",
		EnterpriseYearlyPriceID:  "price_ent_y",
	})
}

func newWebhookTestService(t *testing.T, db *gorm.DB, fetcher *stubSubscriptionFetcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		SubscriptionRepo: subscriptions.NewRepository(db),
		EnrollmentRepo:   enrollments.NewRepository(db),
		PaymentRepo:      payments.NewRepository(db),
		CourseRepo:       courses.NewRepository(db),
		StripeClient:     fetcher,
		Catalog:          webhookCatalog(),
		Outbox:           outbox.NewService(outbox.NewRepository(db), nil),
		DB:               webhookTxRunner{db: db},
	})
	require.NoError(t, err)
	return svc
}

func stripeSubscriptionFixture(id, priceID string, status stripe.SubscriptionStatus, periodEnd int64) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     id,
		Status: status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				Price:            &stripe.Price{ID: priceID},
				CurrentPeriodEnd: periodEnd,
			}},
		},
	}
}

func checkoutCompletedEvent(t *testing.T, session *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestSubscriptionCheckoutCompletedUpgradesPlan(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	userID := uuid.New()
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	fetcher := &stubSubscriptionFetcher{byID: map[string]*stripe.Subscription{
		"sub_pro": stripeSubscriptionFixture("sub_pro", "price_pro_m", stripe.SubscriptionStatusActive, periodEnd),
	}}
	service := newWebhookTestService(t, db, fetcher)

	subRepo := subscriptions.NewRepository(db)
	require.NoError(t, subRepo.Create(context.Background(), &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		Plan:   enums.SubscriptionPlanFree,
		Status: enums.SubscriptionStatusActive,
	}))

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		ID:           "cs_sub_1",
		Mode:         stripe.CheckoutSessionModeSubscription,
		Subscription: &stripe.Subscription{ID: "sub_pro"},
		Metadata: map[string]string{
			"user_id": userID.String(),
			"type":    subscriptions.MetadataTypeSubscription,
		},
	})
	require.NoError(t, service.HandleEvent(context.Background(), event))

	stored, err := subRepo.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanPro, stored.Plan)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	require.NotNil(t, stored.StripeSubscriptionID)
	assert.Equal(t, "sub_pro", *stored.StripeSubscriptionID)
	require.NotNil(t, stored.StripePriceID)
	assert.Equal(t, "price_pro_m", *stored.StripePriceID)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, stored.CurrentPeriodEnd.Unix())
}

func TestSubscriptionCheckoutCreatesRowWhenMissing(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	userID := uuid.New()
	fetcher := &stubSubscriptionFetcher{byID: map[string]*stripe.Subscription{
		"sub_ent": stripeSubscriptionFixture("sub_ent", "price_ent_y", stripe.SubscriptionStatusTrialing, time.Now().Unix()),
	}}
	service := newWebhookTestService(t, db, fetcher)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		ID:           "cs_sub_2",
		Mode:         stripe.CheckoutSessionModeSubscription,
		Subscription: &stripe.Subscription{ID: "sub_ent"},
		Metadata:     map[string]string{"user_id": userID.String()},
	})
	require.NoError(t, service.HandleEvent(context.Background(), event))

	stored, err := subscriptions.NewRepository(db).FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanEnterprise, stored.Plan)
	assert.Equal(t, enums.SubscriptionStatusTrialing, stored.Status)
}

func TestCoursePurchaseSettlesOnce(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	userID := uuid.New()
	price := decimal.NewFromFloat(49.99)
	course := &models.Course{
		ID:           uuid.New(),
		InstructorID: uuid.New(),
		Title:        "Distributed Systems",
		Slug:         "distributed-systems",
		Price:        &price,
		Status:       enums.CourseStatusPublished,
	}
	require.NoError(t, db.Create(course).Error)
	service := newWebhookTestService(t, db, &stubSubscriptionFetcher{})

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		ID:          "cs_course_1",
		Mode:        stripe.CheckoutSessionModePayment,
		AmountTotal: 4999,
		Currency:    stripe.CurrencyUSD,
		Metadata: map[string]string{
			"user_id":   userID.String(),
			"course_id": course.ID.String(),
			"type":      subscriptions.MetadataTypeCoursePurchase,
		},
	})

	// First delivery settles the purchase, redelivery is a no-op.
	require.NoError(t, service.HandleEvent(context.Background(), event))
	require.NoError(t, service.HandleEvent(context.Background(), event))

	enrollment, err := enrollments.NewRepository(db).FindByUserAndCourse(context.Background(), userID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EnrollmentStatusActive, enrollment.Status)

	payment, err := payments.NewRepository(db).FindByStripeSessionID(context.Background(), "cs_course_1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.NewFromFloat(49.99)))
	assert.Equal(t, "usd", payment.Currency)
	require.NotNil(t, payment.CompletedAt)

	var enrollmentCount, paymentCount, eventCount int64
	require.NoError(t, db.Model(&models.Enrollment{}).Count(&enrollmentCount).Error)
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	assert.Equal(t, int64(1), enrollmentCount)
	assert.Equal(t, int64(1), paymentCount)
	assert.Equal(t, int64(1), eventCount)

	updated, err := courses.NewRepository(db).FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalStudents)
}

func TestPaymentModeWithoutPurchaseMetadataIgnored(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	service := newWebhookTestService(t, db, &stubSubscriptionFetcher{})

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		ID:   "cs_other",
		Mode: stripe.CheckoutSessionModePayment,
	})
	require.NoError(t, service.HandleEvent(context.Background(), event))

	var paymentCount int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&paymentCount).Error)
	assert.Zero(t, paymentCount)
}

func TestInvoicePaymentRefreshesPeriod(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	userID := uuid.New()
	stripeSubID := "sub_invoice"
	oldEnd := time.Now().Add(-24 * time.Hour)
	subRepo := subscriptions.NewRepository(db)
	require.NoError(t, subRepo.Create(context.Background(), &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		StripeSubscriptionID: &stripeSubID,
		Plan:                 enums.SubscriptionPlanPro,
		Status:               enums.SubscriptionStatusPastDue,
		CurrentPeriodEnd:     &oldEnd,
	}))

	newEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	fetcher := &stubSubscriptionFetcher{byID: map[string]*stripe.Subscription{
		stripeSubID: stripeSubscriptionFixture(stripeSubID, "price_pro_m", stripe.SubscriptionStatusActive, newEnd),
	}}
	service := newWebhookTestService(t, db, fetcher)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentSucceeded,
		Data: &stripe.EventData{
			Object: map[string]interface{}{"subscription": stripeSubID},
		},
	}
	require.NoError(t, service.HandleEvent(context.Background(), event))

	stored, err := subRepo.FindByStripeSubscriptionID(context.Background(), stripeSubID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.Equal(t, newEnd, stored.CurrentPeriodEnd.Unix())
}

func TestInvoiceWithoutSubscriptionIgnored(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	fetcher := &stubSubscriptionFetcher{}
	service := newWebhookTestService(t, db, fetcher)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentSucceeded,
		Data: &stripe.EventData{Object: map[string]interface{}{}},
	}
	require.NoError(t, service.HandleEvent(context.Background(), event))
	assert.Zero(t, fetcher.calls)
}

func TestSubscriptionUpdatedRemapsPlan(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	userID := uuid.New()
	stripeSubID := "sub_updated"
	subRepo := subscriptions.NewRepository(db)
	require.NoError(t, subRepo.Create(context.Background(), &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		StripeSubscriptionID: &stripeSubID,
		Plan:                 enums.SubscriptionPlanPro,
		Status:               enums.SubscriptionStatusActive,
	}))
	service := newWebhookTestService(t, db, &stubSubscriptionFetcher{})

	updated := stripeSubscriptionFixture(stripeSubID, "price_pro_y", stripe.SubscriptionStatusPastDue, time.Now().Unix())
	updated.CancelAtPeriodEnd = true
	raw, err := json.Marshal(updated)
	require.NoError(t, err)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: raw},
	}
	require.NoError(t, service.HandleEvent(context.Background(), event))

	stored, err := subRepo.FindByStripeSubscriptionID(context.Background(), stripeSubID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanPro, stored.Plan)
	assert.Equal(t, enums.SubscriptionStatusPastDue, stored.Status)
	assert.True(t, stored.CancelAtPeriodEnd)
	require.NotNil(t, stored.StripePriceID)
	assert.Equal(t, "price_pro_y", *stored.StripePriceID)
}

func TestSubscriptionUpdatedUnknownIgnored(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	service := newWebhookTestService(t, db, &stubSubscriptionFetcher{})

	raw, err := json.Marshal(stripeSubscriptionFixture("sub_unknown", "price_pro_m", stripe.SubscriptionStatusActive, 0))
	require.NoError(t, err)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: raw},
	}
	require.NoError(t, service.HandleEvent(context.Background(), event))

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubscriptionDeletedDowngradesToFree(t *testing.T) {
	db := setupStripeWebhookTestDB(t)
	userID := uuid.New()
	stripeSubID := "sub_gone"
	priceID := "price_pro_m"
	subRepo := subscriptions.NewRepository(db)
	require.NoError(t, subRepo.Create(context.Background(), &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		StripeSubscriptionID: &stripeSubID,
		StripePriceID:        &priceID,
		Plan:                 enums.SubscriptionPlanPro,
		Status:               enums.SubscriptionStatusActive,
		CancelAtPeriodEnd:    true,
	}))
	service := newWebhookTestService(t, db, &stubSubscriptionFetcher{})

	raw, err := json.Marshal(&stripe.Subscription{ID: stripeSubID})
	require.NoError(t, err)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionDeleted,
		Data: &stripe.EventData{Raw: raw},
	}
	require.NoError(t, service.HandleEvent(context.Background(), event))

	stored, err := subRepo.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionPlanFree, stored.Plan)
	assert.Equal(t, enums.SubscriptionStatusCanceled, stored.Status)
	assert.Nil(t, stored.StripeSubscriptionID)
	assert.Nil(t, stored.StripePriceID)
	assert.False(t, stored.CancelAtPeriodEnd)
	require.NotNil(t, stored.CanceledAt)
}
