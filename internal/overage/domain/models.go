// Package domain contains the metered overage-charge model and contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// OverageCharge records one metered charge, created only when every credit
// bucket read zero at consumption time. The unit rate is denormalized onto
// the row so later rate changes never rewrite history.
type OverageCharge struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID `gorm:"not null;index" json:"account_id"`
	Reference     string       `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	Quantity      int64        `gorm:"not null" json:"quantity"`
	UnitRateCents int64        `gorm:"not null" json:"unit_rate_cents"`
	AmountCents   int64        `gorm:"not null" json:"amount_cents"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OverageCharge) TableName() string { return "overage_charges" }

// Gateway checks the commerce platform for a chargeable billing method.
// Implementations must respect context deadlines; the caller applies a
// bounded timeout and holds a per-account lock while waiting.
type Gateway interface {
	VerifyBillingMethod(ctx context.Context, accountID snowflake.ID) error
}

// Calculator creates metered charges for the unmet remainder of a usage
// request.
type Calculator interface {
	// BillOverage verifies the billing method and inserts the charge on
	// the caller's transaction, so a verification failure rolls back with
	// the rest of the consumption attempt.
	BillOverage(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, quantity int64) (*OverageCharge, error)
}

var (
	ErrOverageUnavailable = errors.New("overage_unavailable")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
)
