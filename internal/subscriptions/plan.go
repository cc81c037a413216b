package subscriptions

import (
	"github.com/stripe/stripe-go/v84"

	"github.com/learnhub-app/learnhub-backend/pkg/config"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
)

// BillingInterval selects the subscription billing cadence.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

// IsValid reports whether the interval is a known cadence.
func (i BillingInterval) IsValid() bool {
	return i == BillingIntervalMonthly || i == BillingIntervalYearly
}

// PlanCatalog maps Stripe price ids onto subscription plans. The price
// ids come from configuration and never change at runtime.
type PlanCatalog struct {
	cfg config.StripeConfig
}

// NewPlanCatalog builds the catalog from the Stripe configuration.
func NewPlanCatalog(cfg config.StripeConfig) PlanCatalog {
	return PlanCatalog{cfg: cfg}
}

// PriceID resolves a plan and interval to its Stripe price id. An empty
// return means the combination is not sold.
func (c PlanCatalog) PriceID(plan enums.SubscriptionPlan, interval BillingInterval) string {
	switch {
	case plan == enums.SubscriptionPlanPro && interval == BillingIntervalMonthly:
		return c.cfg.ProMonthlyPriceID
	case plan == enums.SubscriptionPlanPro && interval == BillingIntervalYearly:
		return c.cfg.ProYearlyPriceID
	case plan == enums.SubscriptionPlanEnterprise && interval == BillingIntervalMonthly:
		return c.cfg.EnterpriseMonthlyPriceID
	case plan == enums.SubscriptionPlanEnterprise && interval == BillingIntervalYearly:
		return c.cfg.EnterpriseYearlyPriceID
	}
	return ""
}

// PlanForPriceID maps a Stripe price id back to the plan it sells.
// Unknown price ids resolve to FREE so a misconfigured webhook never
// grants entitlements.
func (c PlanCatalog) PlanForPriceID(priceID string) enums.SubscriptionPlan {
	switch priceID {
	case "":
		return enums.SubscriptionPlanFree
	case c.cfg.ProMonthlyPriceID, c.cfg.ProYearlyPriceID:
		return enums.SubscriptionPlanPro
	case c.cfg.EnterpriseMonthlyPriceID, c.cfg.EnterpriseYearlyPriceID:
		return enums.SubscriptionPlanEnterprise
	}
	return enums.SubscriptionPlanFree
}

// MapStripeStatus translates Stripe's subscription status into the
// local enum. Statuses Stripe may add later default to ACTIVE so a
// paying customer is never locked out by an unknown value.
func MapStripeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusUnpaid
	}
	return enums.SubscriptionStatusActive
}
