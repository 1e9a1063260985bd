package enums

// RevenueCatEventType is the lifecycle event name pushed by RevenueCat webhooks.
// Types outside the known set are logged but never change subscription state.
type RevenueCatEventType string

const (
	RevenueCatEventInitialPurchase RevenueCatEventType = "INITIAL_PURCHASE"
	RevenueCatEventRenewal         RevenueCatEventType = "RENEWAL"
	RevenueCatEventUncancellation  RevenueCatEventType = "UNCANCELLATION"
	RevenueCatEventCancellation    RevenueCatEventType = "CANCELLATION"
	RevenueCatEventExpiration      RevenueCatEventType = "EXPIRATION"
	RevenueCatEventBillingIssue    RevenueCatEventType = "BILLING_ISSUE"
)

var knownRevenueCatEventTypes = []RevenueCatEventType{
	RevenueCatEventInitialPurchase,
	RevenueCatEventRenewal,
	RevenueCatEventUncancellation,
	RevenueCatEventCancellation,
	RevenueCatEventExpiration,
	RevenueCatEventBillingIssue,
}

func (e RevenueCatEventType) String() string {
	return string(e)
}

// IsKnown reports whether the event drives a state transition.
func (e RevenueCatEventType) IsKnown() bool {
	for _, candidate := range knownRevenueCatEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// RevenueCatPeriodType describes the billing period of the purchase.
type RevenueCatPeriodType string

const (
	RevenueCatPeriodNormal      RevenueCatPeriodType = "NORMAL"
	RevenueCatPeriodTrial       RevenueCatPeriodType = "TRIAL"
	RevenueCatPeriodIntro       RevenueCatPeriodType = "INTRO"
	RevenueCatPeriodPromotional RevenueCatPeriodType = "PROMOTIONAL"
)

func (p RevenueCatPeriodType) IsTrial() bool {
	return p == RevenueCatPeriodTrial
}
