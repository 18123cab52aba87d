package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	accountservice "github.com/veeville2011/try-this-look-sub005/internal/account/service"
	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/config"
	creditsdomain "github.com/veeville2011/try-this-look-sub005/internal/credits/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	ledgerservice "github.com/veeville2011/try-this-look-sub005/internal/ledger/service"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
	"github.com/veeville2011/try-this-look-sub005/internal/trial"
)

func TestRedeemCreditsCouponBucket(t *testing.T) {
	h := setupCredits(t)
	h.insertCoupon(t, "LAUNCH50", 50)

	result, err := h.couponSvc.Redeem(context.Background(), creditsdomain.RedeemCouponRequest{
		AccountID:     h.accountID,
		CouponCode:    "launch50",
		TransactionID: "tx-1",
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if result.Balances[ledgerdomain.SourceCoupon] != 50 {
		t.Fatalf("expected coupon balance 50, got %d", result.Balances[ledgerdomain.SourceCoupon])
	}
	if result.Replayed {
		t.Fatal("first redemption must not be a replay")
	}
}

func TestRedeemReplayCreditsOnce(t *testing.T) {
	h := setupCredits(t)
	h.insertCoupon(t, "WELCOME25", 25)

	req := creditsdomain.RedeemCouponRequest{
		AccountID:     h.accountID,
		CouponCode:    "WELCOME25",
		TransactionID: "tx-2",
	}
	if _, err := h.couponSvc.Redeem(context.Background(), req); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	result, err := h.couponSvc.Redeem(context.Background(), req)
	if err != nil {
		t.Fatalf("replay redeem: %v", err)
	}

	if !result.Replayed {
		t.Fatal("expected replayed result")
	}
	if result.Balances[ledgerdomain.SourceCoupon] != 25 {
		t.Fatalf("replay must not double-credit: got %d", result.Balances[ledgerdomain.SourceCoupon])
	}
}

func TestRedeemSecondAttemptWithNewTransactionFails(t *testing.T) {
	h := setupCredits(t)
	h.insertCoupon(t, "ONCE10", 10)

	if _, err := h.couponSvc.Redeem(context.Background(), creditsdomain.RedeemCouponRequest{
		AccountID:     h.accountID,
		CouponCode:    "ONCE10",
		TransactionID: "tx-3",
	}); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	_, err := h.couponSvc.Redeem(context.Background(), creditsdomain.RedeemCouponRequest{
		AccountID:     h.accountID,
		CouponCode:    "ONCE10",
		TransactionID: "tx-4",
	})
	if !errors.Is(err, creditsdomain.ErrCouponAlreadyRedeemed) {
		t.Fatalf("expected coupon_already_redeemed, got %v", err)
	}
}

func TestRedeemUnknownCoupon(t *testing.T) {
	h := setupCredits(t)

	_, err := h.couponSvc.Redeem(context.Background(), creditsdomain.RedeemCouponRequest{
		AccountID:     h.accountID,
		CouponCode:    "NOPE",
		TransactionID: "tx-5",
	})
	if !errors.Is(err, creditsdomain.ErrCouponNotFound) {
		t.Fatalf("expected coupon_not_found, got %v", err)
	}
}

func TestConfirmPurchaseCreditsPurchasedBucket(t *testing.T) {
	h := setupCredits(t)

	result, err := h.purchaseSvc.Confirm(context.Background(), creditsdomain.ConfirmPurchaseRequest{
		AccountID:     h.accountID,
		PackageID:     "pack-500",
		CreditAmount:  500,
		TransactionID: "tx-6",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if result.Balances[ledgerdomain.SourcePurchased] != 500 {
		t.Fatalf("expected purchased balance 500, got %d", result.Balances[ledgerdomain.SourcePurchased])
	}
}

func TestConfirmPurchaseReplayCreditsOnce(t *testing.T) {
	h := setupCredits(t)

	req := creditsdomain.ConfirmPurchaseRequest{
		AccountID:     h.accountID,
		PackageID:     "pack-100",
		CreditAmount:  100,
		TransactionID: "tx-7",
	}
	if _, err := h.purchaseSvc.Confirm(context.Background(), req); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	result, err := h.purchaseSvc.Confirm(context.Background(), req)
	if err != nil {
		t.Fatalf("replay confirm: %v", err)
	}

	if !result.Replayed {
		t.Fatal("expected replayed result")
	}
	if result.Balances[ledgerdomain.SourcePurchased] != 100 {
		t.Fatalf("replay must not double-credit: got %d", result.Balances[ledgerdomain.SourcePurchased])
	}
}

func TestConfirmPurchaseValidatesInput(t *testing.T) {
	h := setupCredits(t)

	_, err := h.purchaseSvc.Confirm(context.Background(), creditsdomain.ConfirmPurchaseRequest{
		AccountID:     h.accountID,
		PackageID:     "pack-1",
		CreditAmount:  0,
		TransactionID: "tx-8",
	})
	if !errors.Is(err, creditsdomain.ErrInvalidAmount) {
		t.Fatalf("expected invalid_amount, got %v", err)
	}

	_, err = h.purchaseSvc.Confirm(context.Background(), creditsdomain.ConfirmPurchaseRequest{
		AccountID:     h.accountID,
		PackageID:     "  ",
		CreditAmount:  10,
		TransactionID: "tx-9",
	})
	if !errors.Is(err, creditsdomain.ErrInvalidPackage) {
		t.Fatalf("expected invalid_package, got %v", err)
	}

	_, err = h.purchaseSvc.Confirm(context.Background(), creditsdomain.ConfirmPurchaseRequest{
		AccountID:     h.accountID,
		PackageID:     "pack-1",
		CreditAmount:  10,
		TransactionID: "",
	})
	if !errors.Is(err, creditsdomain.ErrInvalidTransaction) {
		t.Fatalf("expected invalid_transaction, got %v", err)
	}
}

type creditsHarness struct {
	db          *gorm.DB
	genID       *snowflake.Node
	couponSvc   creditsdomain.CouponService
	purchaseSvc creditsdomain.PurchaseService
	accountID   snowflake.ID
}

func (h *creditsHarness) insertCoupon(t *testing.T, code string, amount int64) {
	t.Helper()
	err := h.db.Exec(
		`INSERT INTO coupons (id, code, credit_amount, created_at) VALUES (?, ?, ?, ?)`,
		h.genID.Generate(),
		code,
		amount,
		time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("insert coupon: %v", err)
	}
}

func setupCredits(t *testing.T) *creditsHarness {
	t.Helper()
	db := setupCreditsTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	log := zap.NewNop()
	cfg := config.Config{TrialAllotment: 100, TrialDuration: 30 * 24 * time.Hour}
	reg := metrics.New(prometheus.NewRegistry())
	outbox := events.NewOutbox(db, node)
	store := ledgerservice.NewStore(ledgerservice.Params{DB: db, Log: log, GenID: node})
	trialMgr := trial.NewManager(trial.ManagerParams{DB: db, Log: log, Store: store, Outbox: outbox, Metrics: reg, Cfg: cfg})
	locks := ledger.NewAccountLocks()
	accountSvc := accountservice.NewService(accountservice.Params{DB: db, Log: log, GenID: node, Locks: locks, Store: store, TrialMgr: trialMgr, Clock: clock.SystemClock{}})
	idem := idempotency.NewRegistry(idempotency.Params{DB: db, GenID: node})

	couponSvc := NewCouponService(CouponParams{
		DB:         db,
		Log:        log,
		GenID:      node,
		Locks:      locks,
		Store:      store,
		AccountSvc: accountSvc,
		Idem:       idem,
		Outbox:     outbox,
		Metrics:    reg,
	})
	purchaseSvc := NewPurchaseService(PurchaseParams{
		DB:         db,
		Log:        log,
		GenID:      node,
		Locks:      locks,
		Store:      store,
		AccountSvc: accountSvc,
		Idem:       idem,
		Outbox:     outbox,
		Metrics:    reg,
	})

	account, err := accountSvc.Provision(context.Background(), accountdomain.ProvisionRequest{
		ShopDomain: "credits-shop.myshopify.com",
		PlanID:     "starter",
	})
	if err != nil {
		t.Fatalf("provision account: %v", err)
	}

	return &creditsHarness{
		db:          db,
		genID:       node,
		couponSvc:   couponSvc,
		purchaseSvc: purchaseSvc,
		accountID:   account.ID,
	}
}

func setupCreditsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT PRIMARY KEY,
			shop_domain TEXT NOT NULL UNIQUE,
			plan_id TEXT NOT NULL,
			trial_started_at TIMESTAMP,
			trial_duration_seconds BIGINT NOT NULL DEFAULT 0,
			trial_ended BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS credit_buckets (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			source TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			lifetime_added BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, source)
		)`,
		`CREATE TABLE IF NOT EXISTS credit_adjustments (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			source TEXT NOT NULL,
			delta BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			scope TEXT NOT NULL,
			idem_key TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, scope, idem_key)
		)`,
		`CREATE TABLE IF NOT EXISTS coupons (
			id BIGINT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			credit_amount BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS coupon_redemptions (
			id BIGINT PRIMARY KEY,
			coupon_id BIGINT NOT NULL,
			account_id BIGINT NOT NULL,
			transaction_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (coupon_id, account_id)
		)`,
		`CREATE TABLE IF NOT EXISTS credit_purchases (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			package_id TEXT NOT NULL,
			credit_amount BIGINT NOT NULL,
			transaction_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, transaction_id)
		)`,
		`CREATE TABLE IF NOT EXISTS credit_events (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, dedupe_key)
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}
