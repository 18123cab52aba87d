// Package scheduler runs the retention sweeper. Replayed idempotency keys
// only arrive within a short window of the original delivery, so old keys
// and already-published outbox events are pruned on a cron schedule.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/config"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Idem   *idempotency.Registry
	Outbox *events.Outbox
	Clock  clock.Clock
	Cfg    config.Config
}

// Sweeper prunes expired idempotency keys and published outbox events.
type Sweeper struct {
	log    *zap.Logger
	idem   *idempotency.Registry
	outbox *events.Outbox
	clock  clock.Clock
	cfg    config.Config
}

func NewSweeper(p Params) *Sweeper {
	return &Sweeper{
		log:    p.Log.Named("scheduler.sweeper"),
		idem:   p.Idem,
		outbox: p.Outbox,
		clock:  p.Clock,
		cfg:    p.Cfg,
	}
}

// Sweep runs one retention pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.IdempotencyRetention)

	keys, err := s.idem.Sweep(ctx, cutoff)
	if err != nil {
		s.log.Error("idempotency sweep failed", zap.Error(err))
	}
	published, err := s.outbox.PrunePublished(ctx, cutoff)
	if err != nil {
		s.log.Error("outbox prune failed", zap.Error(err))
	}

	s.log.Info("retention sweep done",
		zap.Int64("idempotency_keys", keys),
		zap.Int64("published_events", published),
	)
}

var Module = fx.Module("scheduler",
	fx.Provide(NewSweeper),
	fx.Invoke(func(lc fx.Lifecycle, sweeper *Sweeper, cfg config.Config, log *zap.Logger) error {
		runner := cron.New()
		_, err := runner.AddFunc(cfg.SweepSchedule, func() {
			sweeper.Sweep(context.Background())
		})
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				log.Info("retention sweeper scheduled", zap.String("schedule", cfg.SweepSchedule))
				runner.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				stopped := runner.Stop()
				select {
				case <-stopped.Done():
				case <-ctx.Done():
				}
				return nil
			},
		})
		return nil
	}),
)
