// Package domain contains coupon and purchase crediting models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
)

// Coupon is a redeemable promotional credit grant. Each account may redeem a
// given coupon at most once.
type Coupon struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Code         string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	CreditAmount int64        `gorm:"not null" json:"credit_amount"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Coupon) TableName() string { return "coupons" }

// CouponRedemption records one account redeeming one coupon.
type CouponRedemption struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	CouponID      snowflake.ID `gorm:"not null;uniqueIndex:ux_coupon_redemptions_coupon_account,priority:1"`
	AccountID     snowflake.ID `gorm:"not null;uniqueIndex:ux_coupon_redemptions_coupon_account,priority:2"`
	TransactionID string       `gorm:"type:text;not null"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CouponRedemption) TableName() string { return "coupon_redemptions" }

// CreditPurchase records a confirmed credit-package purchase.
type CreditPurchase struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	AccountID     snowflake.ID `gorm:"not null;uniqueIndex:ux_credit_purchases_account_tx,priority:1"`
	PackageID     string       `gorm:"type:text;not null"`
	CreditAmount  int64        `gorm:"not null"`
	TransactionID string       `gorm:"type:text;not null;uniqueIndex:ux_credit_purchases_account_tx,priority:2"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditPurchase) TableName() string { return "credit_purchases" }

// RedeemCouponRequest credits the coupon bucket once per (coupon, account).
type RedeemCouponRequest struct {
	AccountID     snowflake.ID
	CouponCode    string
	TransactionID string
}

// ConfirmPurchaseRequest credits the purchased bucket after payment
// confirmation.
type ConfirmPurchaseRequest struct {
	AccountID     snowflake.ID
	PackageID     string
	CreditAmount  int64
	TransactionID string
}

// CreditResult reports the post-operation balances. Replayed is set when the
// transaction id had already been applied and nothing changed.
type CreditResult struct {
	Balances ledgerdomain.Balances `json:"balances"`
	Replayed bool                  `json:"replayed"`
}

// CouponService redeems coupons into the coupon bucket.
type CouponService interface {
	Redeem(ctx context.Context, req RedeemCouponRequest) (*CreditResult, error)
}

// PurchaseService credits confirmed purchases into the purchased bucket.
type PurchaseService interface {
	Confirm(ctx context.Context, req ConfirmPurchaseRequest) (*CreditResult, error)
}

var (
	ErrCouponNotFound        = errors.New("coupon_not_found")
	ErrCouponAlreadyRedeemed = errors.New("coupon_already_redeemed")
	ErrInvalidCoupon         = errors.New("invalid_coupon")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidTransaction    = errors.New("invalid_transaction")
	ErrInvalidPackage        = errors.New("invalid_package")
)
