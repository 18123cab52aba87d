// Package idempotency records applied transaction/period identifiers so
// replayed webhooks and retried requests become no-ops.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Scopes partition keys by the operation that claimed them.
const (
	ScopeConsume       = "consume"
	ScopePeriodRenewal = "period_renewal"
	ScopeCouponRedeem  = "coupon_redeem"
	ScopePurchase      = "purchase"
)

var ErrInvalidKey = errors.New("invalid_idempotency_key")

// Registry claims idempotency keys with a unique insert. A key that fails to
// insert was already applied.
type Registry struct {
	db    *gorm.DB
	genID *snowflake.Node
}

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

func NewRegistry(p Params) *Registry {
	return &Registry{db: p.DB, genID: p.GenID}
}

// Claim records (accountID, scope, key) and reports whether this call was the
// first to apply it. Runs on the caller's transaction so the claim commits or
// rolls back together with the operation's effects.
func (r *Registry) Claim(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, scope, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if accountID == 0 || key == "" || strings.TrimSpace(scope) == "" {
		return false, ErrInvalidKey
	}
	conn := tx
	if conn == nil {
		conn = r.db
	}
	result := conn.WithContext(ctx).Exec(
		`INSERT INTO idempotency_keys (id, account_id, scope, idem_key, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, scope, idem_key) DO NOTHING`,
		r.genID.Generate(),
		accountID,
		scope,
		key,
		time.Now().UTC(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Sweep deletes keys older than the retention cutoff and returns the count.
// Replays are expected within a short window of the original delivery, so a
// bounded retention is sufficient.
func (r *Registry) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM idempotency_keys WHERE created_at < ?`,
		olderThan,
	)
	return result.RowsAffected, result.Error
}

var Module = fx.Module("idempotency",
	fx.Provide(NewRegistry),
)
