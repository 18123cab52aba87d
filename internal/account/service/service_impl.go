package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/trial"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Locks    *ledger.AccountLocks
	Store    ledgerdomain.Store
	TrialMgr *trial.Manager
	Clock    clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	locks    *ledger.AccountLocks
	store    ledgerdomain.Store
	trialMgr *trial.Manager
	clock    clock.Clock
}

func NewService(p Params) accountdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		genID:    p.GenID,
		locks:    p.Locks,
		store:    p.Store,
		trialMgr: p.TrialMgr,
		clock:    p.Clock,
	}
}

func (s *Service) Provision(ctx context.Context, req accountdomain.ProvisionRequest) (*accountdomain.Account, error) {
	shopDomain := accountdomain.NormalizeShopDomain(req.ShopDomain)
	if shopDomain == "" || !strings.Contains(shopDomain, ".") {
		return nil, accountdomain.ErrInvalidShopDomain
	}
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		return nil, accountdomain.ErrInvalidPlan
	}

	if existing, err := s.GetByShopDomain(ctx, shopDomain); err == nil {
		return existing, nil
	} else if !errors.Is(err, accountdomain.ErrAccountNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	account := &accountdomain.Account{
		ID:         s.genID.Generate(),
		ShopDomain: shopDomain,
		PlanID:     planID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`INSERT INTO accounts (id, shop_domain, plan_id, trial_duration_seconds, trial_ended, created_at, updated_at)
			 VALUES (?, ?, ?, 0, false, ?, ?)
			 ON CONFLICT (shop_domain) DO NOTHING`,
			account.ID,
			account.ShopDomain,
			account.PlanID,
			now,
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost a provisioning race; the winner's row is authoritative.
			return nil
		}
		if err := s.store.EnsureBuckets(ctx, tx, account.ID); err != nil {
			return err
		}
		return s.trialMgr.Activate(ctx, tx, account.ID, now)
	})
	if err != nil {
		return nil, err
	}

	created, err := s.GetByShopDomain(ctx, shopDomain)
	if err != nil {
		return nil, err
	}
	if created.ID == account.ID {
		s.log.Info("account provisioned",
			zap.String("account_id", account.ID.String()),
			zap.String("shop_domain", shopDomain),
			zap.String("plan_id", planID),
		)
	}
	return created, nil
}

func (s *Service) EndTrial(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(account.ID)
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.trialMgr.End(ctx, tx, account.ID, account.TrialState(), s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	if id == 0 {
		return nil, accountdomain.ErrInvalidAccount
	}
	var account accountdomain.Account
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, accountdomain.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Service) GetByShopDomain(ctx context.Context, shopDomain string) (*accountdomain.Account, error) {
	shopDomain = accountdomain.NormalizeShopDomain(shopDomain)
	if shopDomain == "" {
		return nil, accountdomain.ErrInvalidShopDomain
	}
	var account accountdomain.Account
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE shop_domain = ?`,
		shopDomain,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, accountdomain.ErrAccountNotFound
	}
	return &account, nil
}
