package events

// Credit event types published to the outbox for downstream consumers
// (analytics forwarding, dashboard cache invalidation).
const (
	EventCreditConsumed   = "credit.consumed"
	EventOverageBilled    = "overage.billed"
	EventPeriodRenewed    = "period.renewed"
	EventCouponRedeemed   = "coupon.redeemed"
	EventCreditsPurchased = "credits.purchased"
	EventTrialEnded       = "trial.ended"
)

// ConsumptionPayload captures the debit breakdown of a usage event.
type ConsumptionPayload struct {
	UsageEventID  string `json:"usage_event_id"`
	AccountID     string `json:"account_id"`
	Quantity      int64  `json:"quantity"`
	TrialUsed     int64  `json:"trial_used"`
	CouponUsed    int64  `json:"coupon_used"`
	PlanUsed      int64  `json:"plan_used"`
	PurchasedUsed int64  `json:"purchased_used"`
	OverageBilled int64  `json:"overage_billed"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p ConsumptionPayload) ToMap() map[string]any {
	return map[string]any{
		"usage_event_id": p.UsageEventID,
		"account_id":     p.AccountID,
		"quantity":       p.Quantity,
		"trial_used":     p.TrialUsed,
		"coupon_used":    p.CouponUsed,
		"plan_used":      p.PlanUsed,
		"purchased_used": p.PurchasedUsed,
		"overage_billed": p.OverageBilled,
	}
}

// OveragePayload captures a metered charge.
type OveragePayload struct {
	ChargeID    string `json:"charge_id"`
	AccountID   string `json:"account_id"`
	Reference   string `json:"reference"`
	Quantity    int64  `json:"quantity"`
	AmountCents int64  `json:"amount_cents"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p OveragePayload) ToMap() map[string]any {
	return map[string]any{
		"charge_id":    p.ChargeID,
		"account_id":   p.AccountID,
		"reference":    p.Reference,
		"quantity":     p.Quantity,
		"amount_cents": p.AmountCents,
	}
}
