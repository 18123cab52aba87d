package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/veeville2011/try-this-look-sub005/internal/config"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
	overagedomain "github.com/veeville2011/try-this-look-sub005/internal/overage/domain"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Gateway overagedomain.Gateway
	Outbox  *events.Outbox
	Metrics *metrics.Metrics
	Cfg     config.Config
}

type Calculator struct {
	log     *zap.Logger
	genID   *snowflake.Node
	gateway overagedomain.Gateway
	outbox  *events.Outbox
	metrics *metrics.Metrics
	cfg     config.Config
}

func NewCalculator(p Params) overagedomain.Calculator {
	return &Calculator{
		log:     p.Log.Named("overage.calculator"),
		genID:   p.GenID,
		gateway: p.Gateway,
		outbox:  p.Outbox,
		metrics: p.Metrics,
		cfg:     p.Cfg,
	}
}

func (c *Calculator) BillOverage(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, quantity int64) (*overagedomain.OverageCharge, error) {
	if accountID == 0 || quantity <= 0 {
		return nil, overagedomain.ErrInvalidQuantity
	}

	// Bounded external check. The caller holds the per-account lock, so a
	// hung billing API must not hold it beyond the configured timeout.
	verifyCtx, cancel := context.WithTimeout(ctx, c.cfg.OverageVerifyTimeout)
	defer cancel()
	if err := c.gateway.VerifyBillingMethod(verifyCtx, accountID); err != nil {
		if c.metrics != nil {
			c.metrics.OverageUnavailable.Inc()
		}
		return nil, overagedomain.ErrOverageUnavailable
	}

	charge := &overagedomain.OverageCharge{
		ID:            c.genID.Generate(),
		AccountID:     accountID,
		Reference:     uuid.NewString(),
		Quantity:      quantity,
		UnitRateCents: c.cfg.OverageUnitRateCents,
		AmountCents:   quantity * c.cfg.OverageUnitRateCents,
	}

	err := tx.WithContext(ctx).Exec(
		`INSERT INTO overage_charges (id, account_id, reference, quantity, unit_rate_cents, amount_cents)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		charge.ID,
		charge.AccountID,
		charge.Reference,
		charge.Quantity,
		charge.UnitRateCents,
		charge.AmountCents,
	).Error
	if err != nil {
		return nil, err
	}

	if err := c.outbox.PublishTx(ctx, tx, events.Event{
		AccountID: accountID,
		Type:      events.EventOverageBilled,
		Payload: events.OveragePayload{
			ChargeID:    charge.ID.String(),
			AccountID:   accountID.String(),
			Reference:   charge.Reference,
			Quantity:    charge.Quantity,
			AmountCents: charge.AmountCents,
		}.ToMap(),
		DedupeKey: "overage:" + charge.Reference,
	}); err != nil {
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.OverageCharges.Inc()
	}
	c.log.Info("overage billed",
		zap.String("account_id", accountID.String()),
		zap.Int64("quantity", quantity),
		zap.Int64("amount_cents", charge.AmountCents),
	)
	return charge, nil
}
