package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Store is the bucket ledger. All balance reads and writes go through it.
type Store interface {
	// EnsureBuckets creates the four buckets for an account if missing.
	EnsureBuckets(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error

	// GetBalances returns the current balance of every bucket.
	GetBalances(ctx context.Context, accountID snowflake.ID) (Balances, error)

	// Adjust applies delta to one bucket and writes an audit row, in its
	// own transaction. Fails with ErrInsufficientBalance when a negative
	// delta would drive the balance below zero.
	Adjust(ctx context.Context, accountID snowflake.ID, source Source, delta int64, reason string) (int64, error)

	// AdjustTx is Adjust inside a caller-held transaction. Callers holding
	// the account lock use this to make a multi-bucket debit atomic.
	AdjustTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, source Source, delta int64, reason string) (int64, error)
}

// Service is the package alias for Store.
type Service = Store

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAdjustment   = errors.New("invalid_adjustment")
	ErrBucketNotFound      = errors.New("bucket_not_found")
)
