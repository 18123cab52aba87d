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
	consumptiondomain "github.com/veeville2011/try-this-look-sub005/internal/consumption/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
	overagedomain "github.com/veeville2011/try-this-look-sub005/internal/overage/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/trial"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Locks      *ledger.AccountLocks
	Store      ledgerdomain.Store
	AccountSvc accountdomain.Service
	TrialMgr   *trial.Manager
	Calculator overagedomain.Calculator
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
	trialMgr   *trial.Manager
	calculator overagedomain.Calculator
	idem       *idempotency.Registry
	outbox     *events.Outbox
	metrics    *metrics.Metrics
	clock      clock.Clock
}

func NewService(p Params) consumptiondomain.Engine {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("consumption.engine"),
		genID:      p.GenID,
		locks:      p.Locks,
		store:      p.Store,
		accountSvc: p.AccountSvc,
		trialMgr:   p.TrialMgr,
		calculator: p.Calculator,
		idem:       p.Idem,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
		clock:      p.Clock,
	}
}

func (s *Service) Consume(ctx context.Context, req consumptiondomain.ConsumeRequest) (*consumptiondomain.ConsumptionResult, error) {
	if req.Quantity <= 0 {
		return nil, consumptiondomain.ErrInvalidQuantity
	}
	idemKey := strings.TrimSpace(req.IdempotencyKey)
	if idemKey == "" {
		return nil, consumptiondomain.ErrMissingIdempotencyKey
	}

	account, err := s.accountSvc.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	// One exclusive section per account: the read-modify-write over the
	// bucket set must not interleave with any other adjustment.
	unlock := s.locks.Lock(account.ID)
	defer unlock()

	var result *consumptiondomain.ConsumptionResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lazy trial expiry on access. Ending the trial does not touch
		// its balance and does not change consumption priority.
		if _, err := s.trialMgr.ReconcileExpiry(ctx, tx, account.ID, account.TrialState(), s.clock.Now()); err != nil {
			return err
		}

		fresh, err := s.idem.Claim(ctx, tx, account.ID, idempotency.ScopeConsume, idemKey)
		if err != nil {
			return err
		}
		if !fresh {
			result, err = s.loadRecordedResult(ctx, tx, account.ID, idemKey)
			return err
		}

		result, err = s.drain(ctx, tx, account.ID, req.Quantity, idemKey)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed && s.metrics != nil {
		s.metrics.ReplayedRequests.WithLabelValues(idempotency.ScopeConsume).Inc()
	}
	return result, nil
}

// drain debits buckets strictly in priority order, each only up to its
// balance and only for the still-unmet quantity, then hands any remainder to
// the overage calculator.
func (s *Service) drain(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, quantity int64, idemKey string) (*consumptiondomain.ConsumptionResult, error) {
	balances, err := s.readBalances(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	remaining := quantity
	used := map[ledgerdomain.Source]int64{}
	for _, source := range ledgerdomain.PriorityOrder {
		if remaining == 0 {
			break
		}
		take := balances[source]
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		if _, err := s.store.AdjustTx(ctx, tx, accountID, source, -take, ledgerdomain.ReasonConsume); err != nil {
			return nil, err
		}
		used[source] = take
		remaining -= take
	}

	var overageBilled int64
	if remaining > 0 {
		charge, err := s.calculator.BillOverage(ctx, tx, accountID, remaining)
		if err != nil {
			return nil, err
		}
		overageBilled = charge.Quantity
	}

	event := consumptiondomain.UsageEvent{
		ID:             s.genID.Generate(),
		AccountID:      accountID,
		Quantity:       quantity,
		TrialUsed:      used[ledgerdomain.SourceTrial],
		CouponUsed:     used[ledgerdomain.SourceCoupon],
		PlanUsed:       used[ledgerdomain.SourcePlan],
		PurchasedUsed:  used[ledgerdomain.SourcePurchased],
		OverageBilled:  overageBilled,
		IdempotencyKey: idemKey,
		CreatedAt:      s.clock.Now(),
	}
	err = tx.WithContext(ctx).Exec(
		`INSERT INTO usage_events (id, account_id, quantity, trial_used, coupon_used, plan_used, purchased_used, overage_billed, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.AccountID,
		event.Quantity,
		event.TrialUsed,
		event.CouponUsed,
		event.PlanUsed,
		event.PurchasedUsed,
		event.OverageBilled,
		event.IdempotencyKey,
		event.CreatedAt,
	).Error
	if err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		AccountID: accountID,
		Type:      events.EventCreditConsumed,
		Payload: events.ConsumptionPayload{
			UsageEventID:  event.ID.String(),
			AccountID:     accountID.String(),
			Quantity:      event.Quantity,
			TrialUsed:     event.TrialUsed,
			CouponUsed:    event.CouponUsed,
			PlanUsed:      event.PlanUsed,
			PurchasedUsed: event.PurchasedUsed,
			OverageBilled: event.OverageBilled,
		}.ToMap(),
		DedupeKey: "consume:" + idemKey,
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		for source, units := range used {
			s.metrics.ConsumedUnits.WithLabelValues(string(source)).Add(float64(units))
		}
	}
	s.log.Info("consumption satisfied",
		zap.String("account_id", accountID.String()),
		zap.Int64("quantity", quantity),
		zap.Int64("overage_billed", overageBilled),
	)

	return &consumptiondomain.ConsumptionResult{
		UsageEventID:  event.ID,
		TrialUsed:     event.TrialUsed,
		CouponUsed:    event.CouponUsed,
		PlanUsed:      event.PlanUsed,
		PurchasedUsed: event.PurchasedUsed,
		OverageBilled: event.OverageBilled,
	}, nil
}

func (s *Service) readBalances(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (ledgerdomain.Balances, error) {
	var rows []struct {
		Source  ledgerdomain.Source
		Balance int64
	}
	err := tx.WithContext(ctx).Raw(
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
	for _, row := range rows {
		balances[row.Source] = row.Balance
	}
	return balances, nil
}

func (s *Service) loadRecordedResult(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, idemKey string) (*consumptiondomain.ConsumptionResult, error) {
	var event consumptiondomain.UsageEvent
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM usage_events WHERE account_id = ? AND idempotency_key = ?`,
		accountID,
		idemKey,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		// The key was claimed but no usage event exists: the original write
		// raced a crash. Treat as replay with nothing recorded, but loudly.
		s.log.Warn("claimed idempotency key has no recorded usage event",
			zap.String("account_id", accountID.String()),
			zap.String("idempotency_key", idemKey),
		)
		return &consumptiondomain.ConsumptionResult{Replayed: true}, nil
	}
	return &consumptiondomain.ConsumptionResult{
		UsageEventID:  event.ID,
		TrialUsed:     event.TrialUsed,
		CouponUsed:    event.CouponUsed,
		PlanUsed:      event.PlanUsed,
		PurchasedUsed: event.PurchasedUsed,
		OverageBilled: event.OverageBilled,
		Replayed:      true,
	}, nil
}
