package trial

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/veeville2011/try-this-look-sub005/internal/config"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
)

type ManagerParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Store   ledgerdomain.Store
	Outbox  *events.Outbox
	Metrics *metrics.Metrics
	Cfg     config.Config
}

// Manager drives trial transitions: activation at provisioning, lazy expiry
// on access, and the explicit administrative end signal.
type Manager struct {
	db      *gorm.DB
	log     *zap.Logger
	store   ledgerdomain.Store
	outbox  *events.Outbox
	metrics *metrics.Metrics
	cfg     config.Config
}

func NewManager(p ManagerParams) *Manager {
	return &Manager{
		db:      p.DB,
		log:     p.Log.Named("trial.manager"),
		store:   p.Store,
		outbox:  p.Outbox,
		metrics: p.Metrics,
		cfg:     p.Cfg,
	}
}

// Activate moves NotStarted -> Active: records the start timestamp on the
// account row and seeds the trial bucket with the fixed allotment. Runs on
// the caller's transaction.
func (m *Manager) Activate(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, now time.Time) error {
	err := tx.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET trial_started_at = ?, trial_duration_seconds = ?, trial_ended = false, updated_at = ?
		 WHERE id = ? AND trial_started_at IS NULL`,
		now,
		int64(m.cfg.TrialDuration/time.Second),
		now,
		accountID,
	).Error
	if err != nil {
		return err
	}

	if _, err := m.store.AdjustTx(ctx, tx, accountID, ledgerdomain.SourceTrial, m.cfg.TrialAllotment, ledgerdomain.ReasonTrialGrant); err != nil {
		return err
	}

	m.log.Info("trial activated",
		zap.String("account_id", accountID.String()),
		zap.Int64("allotment", m.cfg.TrialAllotment),
	)
	return nil
}

// ReconcileExpiry flips Active -> Ended when the window has elapsed. The
// trial bucket balance is left untouched. Returns whether a transition
// happened. Runs on the caller's transaction.
func (m *Manager) ReconcileExpiry(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, state State, now time.Time) (bool, error) {
	if state.Ended || Status(state, now) != PhaseEnded {
		return false, nil
	}
	return true, m.end(ctx, tx, accountID, now, "duration_elapsed")
}

// End applies the explicit administrative "trial consumed" signal,
// regardless of remaining window.
func (m *Manager) End(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, state State, now time.Time) error {
	if state.Ended {
		return nil
	}
	return m.end(ctx, tx, accountID, now, "signal")
}

func (m *Manager) end(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, now time.Time, cause string) error {
	result := tx.WithContext(ctx).Exec(
		`UPDATE accounts SET trial_ended = true, updated_at = ? WHERE id = ? AND trial_ended = false`,
		now,
		accountID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	if err := m.outbox.PublishTx(ctx, tx, events.Event{
		AccountID: accountID,
		Type:      events.EventTrialEnded,
		Payload:   map[string]any{"account_id": accountID.String(), "cause": cause},
		DedupeKey: "trial_ended:" + accountID.String(),
	}); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.TrialsEnded.Inc()
	}
	m.log.Info("trial ended",
		zap.String("account_id", accountID.String()),
		zap.String("cause", cause),
	)
	return nil
}

var Module = fx.Module("trial.manager",
	fx.Provide(NewManager),
)
