// Package domain contains the credit bucket models and store contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Source identifies which pool a unit of credit belongs to.
type Source string

const (
	SourceTrial     Source = "trial"
	SourceCoupon    Source = "coupon"
	SourcePlan      Source = "plan"
	SourcePurchased Source = "purchased"
)

// PriorityOrder is the fixed order in which buckets are drained to satisfy a
// usage request. Trial and coupon credit are goodwill-limited and go first,
// plan credit is replenished every period, purchased credit was paid for
// explicitly and is preserved longest. Not configurable.
var PriorityOrder = []Source{SourceTrial, SourceCoupon, SourcePlan, SourcePurchased}

// ValidSource reports whether s names one of the four buckets.
func ValidSource(s Source) bool {
	switch s {
	case SourceTrial, SourceCoupon, SourcePlan, SourcePurchased:
		return true
	}
	return false
}

// Adjustment reasons recorded on every balance change.
const (
	ReasonTrialGrant    = "trial_grant"
	ReasonConsume       = "consume"
	ReasonPeriodRenewal = "period_renewal"
	ReasonCouponRedeem  = "coupon_redeem"
	ReasonPurchase      = "purchase"
)

// CreditBucket is one of the four credit pools of an account.
type CreditBucket struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	AccountID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_credit_buckets_account_source,priority:1"`
	Source        Source       `gorm:"type:text;not null;uniqueIndex:ux_credit_buckets_account_source,priority:2"`
	Balance       int64        `gorm:"not null;default:0"`
	LifetimeAdded int64        `gorm:"not null;default:0"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditBucket) TableName() string { return "credit_buckets" }

// CreditAdjustment is the audit record written for every balance change.
type CreditAdjustment struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	AccountID    snowflake.ID `gorm:"not null;index"`
	Source       Source       `gorm:"type:text;not null"`
	Delta        int64        `gorm:"not null"`
	BalanceAfter int64        `gorm:"not null"`
	Reason       string       `gorm:"type:text;not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditAdjustment) TableName() string { return "credit_adjustments" }

// Balances holds the current balance of each bucket.
type Balances map[Source]int64

// Total sums every bucket.
func (b Balances) Total() int64 {
	var total int64
	for _, balance := range b {
		total += balance
	}
	return total
}
