package subscriptions

import (
	"time"

	"github.com/learnhub-app/learnhub-backend/pkg/db/models"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// CheckoutDTO points the client at a hosted Stripe page.
type CheckoutDTO struct {
	SessionID string `json:"session_id,omitempty"`
	URL       string `json:"url"`
}

// SubscriptionDTO is the API-facing subscription shape.
type SubscriptionDTO struct {
	Plan              enums.SubscriptionPlan   `json:"plan"`
	Status            enums.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd  *time.Time               `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
}

// FromModel maps a persisted subscription onto the API DTO.
func FromModel(sub *models.Subscription) *SubscriptionDTO {
	if sub == nil {
		return &SubscriptionDTO{
			Plan:   enums.SubscriptionPlanFree,
			Status: enums.SubscriptionStatusActive,
		}
	}
	return &SubscriptionDTO{
		Plan:              sub.Plan,
		Status:            sub.Status,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}
