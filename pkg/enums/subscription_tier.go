package enums

import "fmt"

// SubscriptionTier is the entitlement level stored on a subscription row.
type SubscriptionTier string

const (
	SubscriptionTierFree    SubscriptionTier = "free"
	SubscriptionTierPremium SubscriptionTier = "premium"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierPremium,
}

// String implements fmt.Stringer.
func (t SubscriptionTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
