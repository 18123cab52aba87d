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
	creditsdomain "github.com/veeville2011/try-this-look-sub005/internal/credits/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
)

type PurchaseParams struct {
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

type PurchaseServiceImpl struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	locks      *ledger.AccountLocks
	store      ledgerdomain.Store
	accountSvc accountdomain.Service
	idem       *idempotency.Registry
	outbox     *events.Outbox
	metrics    *metrics.Metrics
}

func NewPurchaseService(p PurchaseParams) creditsdomain.PurchaseService {
	return &PurchaseServiceImpl{
		db:         p.DB,
		log:        p.Log.Named("credits.purchase"),
		genID:      p.GenID,
		locks:      p.Locks,
		store:      p.Store,
		accountSvc: p.AccountSvc,
		idem:       p.Idem,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
	}
}

func (s *PurchaseServiceImpl) Confirm(ctx context.Context, req creditsdomain.ConfirmPurchaseRequest) (*creditsdomain.CreditResult, error) {
	packageID := strings.TrimSpace(req.PackageID)
	if packageID == "" {
		return nil, creditsdomain.ErrInvalidPackage
	}
	if req.CreditAmount <= 0 {
		return nil, creditsdomain.ErrInvalidAmount
	}
	txID := strings.TrimSpace(req.TransactionID)
	if txID == "" {
		return nil, creditsdomain.ErrInvalidTransaction
	}

	account, err := s.accountSvc.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(account.ID)
	defer unlock()

	replayed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh, err := s.idem.Claim(ctx, tx, account.ID, idempotency.ScopePurchase, txID)
		if err != nil {
			return err
		}
		if !fresh {
			replayed = true
			return nil
		}

		err = tx.Exec(
			`INSERT INTO credit_purchases (id, account_id, package_id, credit_amount, transaction_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (account_id, transaction_id) DO NOTHING`,
			s.genID.Generate(),
			account.ID,
			packageID,
			req.CreditAmount,
			txID,
			time.Now().UTC(),
		).Error
		if err != nil {
			return err
		}

		if _, err := s.store.AdjustTx(ctx, tx, account.ID, ledgerdomain.SourcePurchased, req.CreditAmount, ledgerdomain.ReasonPurchase); err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			AccountID: account.ID,
			Type:      events.EventCreditsPurchased,
			Payload: map[string]any{
				"account_id":    account.ID.String(),
				"package_id":    packageID,
				"credit_amount": req.CreditAmount,
			},
			DedupeKey: "purchase:" + txID,
		})
	})
	if err != nil {
		return nil, err
	}

	if replayed && s.metrics != nil {
		s.metrics.ReplayedRequests.WithLabelValues(idempotency.ScopePurchase).Inc()
	}
	if !replayed {
		s.log.Info("credits purchased",
			zap.String("account_id", account.ID.String()),
			zap.String("package_id", packageID),
			zap.Int64("credit_amount", req.CreditAmount),
		)
	}

	balances, err := s.store.GetBalances(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &creditsdomain.CreditResult{Balances: balances, Replayed: replayed}, nil
}
