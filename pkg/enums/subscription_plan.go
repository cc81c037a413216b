package enums

import "fmt"

// SubscriptionPlan is the commercial tier a user sits on. FREE is the
// implicit plan for users without a subscription row.
type SubscriptionPlan string

const (
	SubscriptionPlanFree       SubscriptionPlan = "FREE"
	SubscriptionPlanPro        SubscriptionPlan = "PRO"
	SubscriptionPlanEnterprise SubscriptionPlan = "ENTERPRISE"
)

var validSubscriptionPlans = []SubscriptionPlan{
	SubscriptionPlanFree,
	SubscriptionPlanPro,
	SubscriptionPlanEnterprise,
}

// String implements fmt.Stringer.
func (p SubscriptionPlan) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p SubscriptionPlan) IsValid() bool {
	for _, candidate := range validSubscriptionPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseSubscriptionPlan converts raw input into a SubscriptionPlan.
func ParseSubscriptionPlan(value string) (SubscriptionPlan, error) {
	for _, candidate := range validSubscriptionPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription plan %q", value)
}
