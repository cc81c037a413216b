package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// Payment records a one-time course purchase settled through Stripe
// Checkout. StripeSessionID is unique so webhook redeliveries resolve
// to the same row.
type Payment struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CourseID        uuid.UUID           `gorm:"column:course_id;type:uuid;not null;index"`
	StripeSessionID string              `gorm:"column:stripe_session_id;not null;uniqueIndex"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency        string              `gorm:"column:currency;not null;default:'usd'"`
	Status          enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'PENDING'"`
	CompletedAt     *time.Time          `gorm:"column:completed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
