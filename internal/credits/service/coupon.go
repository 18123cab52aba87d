package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/cache"
	creditsdomain "github.com/veeville2011/try-this-look-sub005/internal/credits/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
)

const couponCacheTTL = 5 * time.Minute

type CouponParams struct {
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
}

type CouponServiceImpl struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	locks      *ledger.AccountLocks
	store      ledgerdomain.Store
	accountSvc accountdomain.Service
	idem       *idempotency.Registry
	outbox     *events.Outbox
	metrics    *metrics.Metrics

	// Coupon rows are immutable once created; short TTL only bounds
	// staleness of newly added codes.
	coupons cache.Cache[string, creditsdomain.Coupon]
}

func NewCouponService(p CouponParams) creditsdomain.CouponService {
	return &CouponServiceImpl{
		db:         p.DB,
		log:        p.Log.Named("credits.coupon"),
		genID:      p.GenID,
		locks:      p.Locks,
		store:      p.Store,
		accountSvc: p.AccountSvc,
		idem:       p.Idem,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
		coupons:    cache.NewTTLCache[string, creditsdomain.Coupon](),
	}
}

func (s *CouponServiceImpl) Redeem(ctx context.Context, req creditsdomain.RedeemCouponRequest) (*creditsdomain.CreditResult, error) {
	code := strings.ToUpper(strings.TrimSpace(req.CouponCode))
	if code == "" {
		return nil, creditsdomain.ErrInvalidCoupon
	}
	txID := strings.TrimSpace(req.TransactionID)
	if txID == "" {
		return nil, creditsdomain.ErrInvalidTransaction
	}

	account, err := s.accountSvc.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	coupon, err := s.lookupCoupon(ctx, code)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(account.ID)
	defer unlock()

	replayed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh, err := s.idem.Claim(ctx, tx, account.ID, idempotency.ScopeCouponRedeem, txID)
		if err != nil {
			return err
		}
		if !fresh {
			replayed = true
			return nil
		}

		// One redemption per (coupon, account), independent of the
		// transaction id the client retried with.
		result := tx.Exec(
			`INSERT INTO coupon_redemptions (id, coupon_id, account_id, transaction_id, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (coupon_id, account_id) DO NOTHING`,
			s.genID.Generate(),
			coupon.ID,
			account.ID,
			txID,
			time.Now().UTC(),
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditsdomain.ErrCouponAlreadyRedeemed
		}

		if _, err := s.store.AdjustTx(ctx, tx, account.ID, ledgerdomain.SourceCoupon, coupon.CreditAmount, ledgerdomain.ReasonCouponRedeem); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			AccountID: account.ID,
			Type:      events.EventCouponRedeemed,
			Payload: map[string]any{
				"account_id":    account.ID.String(),
				"coupon_code":   coupon.Code,
				"credit_amount": coupon.CreditAmount,
			},
			DedupeKey: "coupon:" + txID,
		})
	})
	if err != nil {
		return nil, err
	}

	if replayed && s.metrics != nil {
		s.metrics.ReplayedRequests.WithLabelValues(idempotency.ScopeCouponRedeem).Inc()
	}
	if !replayed {
		s.log.Info("coupon redeemed",
			zap.String("account_id", account.ID.String()),
			zap.String("coupon_code", coupon.Code),
			zap.Int64("credit_amount", coupon.CreditAmount),
		)
	}

	balances, err := s.store.GetBalances(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &creditsdomain.CreditResult{Balances: balances, Replayed: replayed}, nil
}

func (s *CouponServiceImpl) lookupCoupon(ctx context.Context, code string) (*creditsdomain.Coupon, error) {
	if cached, ok := s.coupons.Get(code); ok {
		return &cached, nil
	}
	var coupon creditsdomain.Coupon
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM coupons WHERE code = ?`,
		code,
	).Scan(&coupon).Error
	if err != nil {
		return nil, err
	}
	if coupon.ID == 0 {
		return nil, creditsdomain.ErrCouponNotFound
	}
	s.coupons.Set(code, coupon, couponCacheTTL)
	return &coupon, nil
}
