package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewStore(p Params) ledgerdomain.Store {
	return &Store{
		db:    p.DB,
		log:   p.Log.Named("ledger.store"),
		genID: p.GenID,
	}
}

func (s *Store) EnsureBuckets(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error {
	if accountID == 0 {
		return ledgerdomain.ErrInvalidAdjustment
	}
	conn := tx
	if conn == nil {
		conn = s.db
	}
	now := time.Now().UTC()
	for _, source := range ledgerdomain.PriorityOrder {
		err := conn.WithContext(ctx).Exec(
			`INSERT INTO credit_buckets (id, account_id, source, balance, lifetime_added, created_at, updated_at)
			 VALUES (?, ?, ?, 0, 0, ?, ?)
			 ON CONFLICT (account_id, source) DO NOTHING`,
			s.genID.Generate(),
			accountID,
			source,
			now,
			now,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetBalances(ctx context.Context, accountID snowflake.ID) (ledgerdomain.Balances, error) {
	var rows []struct {
		Source  ledgerdomain.Source
		Balance int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT source, balance FROM credit_buckets WHERE account_id = ?`,
		accountID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ledgerdomain.ErrBucketNotFound
	}

	balances := ledgerdomain.Balances{}
	for _, source := range ledgerdomain.PriorityOrder {
		balances[source] = 0
	}
	for _, row := range rows {
		balances[row.Source] = row.Balance
	}
	return balances, nil
}

func (s *Store) Adjust(ctx context.Context, accountID snowflake.ID, source ledgerdomain.Source, delta int64, reason string) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.AdjustTx(ctx, tx, accountID, source, delta, reason)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *Store) AdjustTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, source ledgerdomain.Source, delta int64, reason string) (int64, error) {
	if err := validateAdjustment(accountID, source, delta, reason); err != nil {
		return 0, err
	}

	var row struct {
		ID      snowflake.ID
		Balance int64
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT id, balance FROM credit_buckets WHERE account_id = ? AND source = ?`,
		accountID,
		source,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if row.ID == 0 {
		return 0, ledgerdomain.ErrBucketNotFound
	}

	newBalance := row.Balance + delta
	if newBalance < 0 {
		return 0, ledgerdomain.ErrInsufficientBalance
	}

	added := int64(0)
	if delta > 0 {
		added = delta
	}
	now := time.Now().UTC()
	err = tx.WithContext(ctx).Exec(
		`UPDATE credit_buckets
		 SET balance = ?, lifetime_added = lifetime_added + ?, updated_at = ?
		 WHERE id = ?`,
		newBalance,
		added,
		now,
		row.ID,
	).Error
	if err != nil {
		return 0, err
	}

	err = tx.WithContext(ctx).Exec(
		`INSERT INTO credit_adjustments (id, account_id, source, delta, balance_after, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.genID.Generate(),
		accountID,
		source,
		delta,
		newBalance,
		reason,
		now,
	).Error
	if err != nil {
		return 0, err
	}

	s.log.Debug("bucket adjusted",
		zap.String("account_id", accountID.String()),
		zap.String("source", string(source)),
		zap.Int64("delta", delta),
		zap.Int64("balance_after", newBalance),
		zap.String("reason", reason),
	)
	return newBalance, nil
}

func validateAdjustment(accountID snowflake.ID, source ledgerdomain.Source, delta int64, reason string) error {
	if accountID == 0 {
		return ledgerdomain.ErrInvalidAdjustment
	}
	if !ledgerdomain.ValidSource(source) {
		return ledgerdomain.ErrInvalidAdjustment
	}
	if delta == 0 {
		return ledgerdomain.ErrInvalidAdjustment
	}
	if strings.TrimSpace(reason) == "" {
		return ledgerdomain.ErrInvalidAdjustment
	}
	return nil
}
