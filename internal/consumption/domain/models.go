// Package domain contains the usage-event model and the consumption
// engine contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageEvent records one consumption attempt with its resulting debit
// breakdown. The breakdown is stored so a replayed idempotency key can
// return the original outcome.
type UsageEvent struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID      snowflake.ID `gorm:"not null;uniqueIndex:ux_usage_events_account_key,priority:1" json:"account_id"`
	Quantity       int64        `gorm:"not null" json:"quantity"`
	TrialUsed      int64        `gorm:"not null;default:0" json:"trial_used"`
	CouponUsed     int64        `gorm:"not null;default:0" json:"coupon_used"`
	PlanUsed       int64        `gorm:"not null;default:0" json:"plan_used"`
	PurchasedUsed  int64        `gorm:"not null;default:0" json:"purchased_used"`
	OverageBilled  int64        `gorm:"not null;default:0" json:"overage_billed"`
	IdempotencyKey string       `gorm:"type:text;not null;uniqueIndex:ux_usage_events_account_key,priority:2" json:"idempotency_key"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// ConsumeRequest is one consumption attempt.
type ConsumeRequest struct {
	AccountID      snowflake.ID
	Quantity       int64
	IdempotencyKey string
}

// ConsumptionResult is the debit breakdown of a satisfied request.
type ConsumptionResult struct {
	UsageEventID  snowflake.ID `json:"usage_event_id"`
	TrialUsed     int64        `json:"trial_used"`
	CouponUsed    int64        `json:"coupon_used"`
	PlanUsed      int64        `json:"plan_used"`
	PurchasedUsed int64        `json:"purchased_used"`
	OverageBilled int64        `json:"overage_billed"`
	Replayed      bool         `json:"replayed"`
}

// Engine satisfies usage requests by draining buckets in priority order and
// escalating the shortfall to overage billing.
type Engine interface {
	// Consume never fails for lack of balance; the only surfaced failures
	// are input validation and overage_unavailable.
	Consume(ctx context.Context, req ConsumeRequest) (*ConsumptionResult, error)
}

// Service is the package alias for Engine.
type Service = Engine

var (
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrMissingIdempotencyKey = errors.New("missing_idempotency_key")
)
