package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&ReferralCode{},
		&ReferralRedemption{},
		&Subscription{},
		&SubscriptionWebhookLog{},
		&ShareEvent{},
		&ShareClickEvent{},
	}
}
