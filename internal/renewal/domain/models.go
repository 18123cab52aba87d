// Package domain contains the billing-period model and reconciler contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingPeriod records one applied subscription-period transition. The
// period id is the idempotency key of the renewal notification.
type BillingPeriod struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID       snowflake.ID `gorm:"not null;uniqueIndex:ux_billing_periods_account_period,priority:1" json:"account_id"`
	PeriodID        string       `gorm:"type:text;not null;uniqueIndex:ux_billing_periods_account_period,priority:2" json:"period_id"`
	IncludedCredits int64        `gorm:"not null" json:"included_credits"`
	PeriodStart     time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd       time.Time    `gorm:"not null" json:"period_end"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BillingPeriod) TableName() string { return "billing_periods" }

// RenewalNotification is the billing-webhook payload for a period change.
type RenewalNotification struct {
	AccountID       snowflake.ID
	PeriodID        string
	IncludedCredits int64
	PeriodStart     time.Time
	PeriodEnd       time.Time
}

// Reconciler applies period renewals to the plan bucket.
type Reconciler interface {
	// OnPeriodRenewed adds the period's included credits to the plan
	// bucket. Strictly additive carry-forward: the existing balance is
	// never replaced or reset. Replaying the same period id is a no-op;
	// the returned flag reports whether this call applied the renewal.
	OnPeriodRenewed(ctx context.Context, notification RenewalNotification) (bool, error)
}

// Service is the package alias for Reconciler.
type Service = Reconciler

var (
	ErrInvalidPeriod  = errors.New("invalid_period")
	ErrInvalidCredits = errors.New("invalid_credits")
)
