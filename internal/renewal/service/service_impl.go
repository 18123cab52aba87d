package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
	renewaldomain "github.com/veeville2011/try-this-look-sub005/internal/renewal/domain"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Locks      *ledger.AccountLocks
	Store      ledgerdomain.Store
	AccountSvc accountdomain.Service
	Idem       *idempotency.Registry
	Outbox     *events.Outbox
	Metrics    *metrics.Metrics
	Clock      clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	locks      *ledger.AccountLocks
	store      ledgerdomain.Store
	accountSvc accountdomain.Service
	idem       *idempotency.Registry
	outbox     *events.Outbox
	metrics    *metrics.Metrics
	clock      clock.Clock
}

func NewService(p Params) renewaldomain.Reconciler {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("renewal.reconciler"),
		genID:      p.GenID,
		locks:      p.Locks,
		store:      p.Store,
		accountSvc: p.AccountSvc,
		idem:       p.Idem,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
		clock:      p.Clock,
	}
}

func (s *Service) OnPeriodRenewed(ctx context.Context, notification renewaldomain.RenewalNotification) (bool, error) {
	periodID := strings.TrimSpace(notification.PeriodID)
	if periodID == "" || !notification.PeriodEnd.After(notification.PeriodStart) {
		return false, renewaldomain.ErrInvalidPeriod
	}
	if notification.IncludedCredits <= 0 {
		return false, renewaldomain.ErrInvalidCredits
	}

	account, err := s.accountSvc.GetByID(ctx, notification.AccountID)
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock(account.ID)
	defer unlock()

	applied := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh, err := s.idem.Claim(ctx, tx, account.ID, idempotency.ScopePeriodRenewal, periodID)
		if err != nil {
			return err
		}
		if !fresh {
			// Webhook retry; the renewal was already applied.
			return nil
		}
		applied = true

		err = tx.Exec(
			`INSERT INTO billing_periods (id, account_id, period_id, included_credits, period_start, period_end, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (account_id, period_id) DO NOTHING`,
			s.genID.Generate(),
			account.ID,
			periodID,
			notification.IncludedCredits,
			notification.PeriodStart.UTC(),
			notification.PeriodEnd.UTC(),
			s.clock.Now(),
		).Error
		if err != nil {
			return err
		}

		// Additive carry-forward: the plan bucket accumulates across
		// periods, a renewal never resets it.
		if _, err := s.store.AdjustTx(ctx, tx, account.ID, ledgerdomain.SourcePlan, notification.IncludedCredits, ledgerdomain.ReasonPeriodRenewal); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			AccountID: account.ID,
			Type:      events.EventPeriodRenewed,
			Payload: map[string]any{
				"account_id":       account.ID.String(),
				"period_id":        periodID,
				"included_credits": notification.IncludedCredits,
			},
			DedupeKey: "renewal:" + periodID,
		})
	})
	if err != nil {
		return false, err
	}

	if !applied {
		if s.metrics != nil {
			s.metrics.ReplayedRequests.WithLabelValues(idempotency.ScopePeriodRenewal).Inc()
		}
		return false, nil
	}

	s.log.Info("period renewal applied",
		zap.String("account_id", account.ID.String()),
		zap.String("period_id", periodID),
		zap.Int64("included_credits", notification.IncludedCredits),
	)
	return true, nil
}
