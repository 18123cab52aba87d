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
	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/config"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	ledgerservice "github.com/veeville2011/try-this-look-sub005/internal/ledger/service"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
	"github.com/veeville2011/try-this-look-sub005/internal/trial"
)

var provisionedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestProvisionActivatesTrialAndBuckets(t *testing.T) {
	svc, store := setupAccountService(t)

	account, err := svc.Provision(context.Background(), accountdomain.ProvisionRequest{
		ShopDomain: "new-shop.myshopify.com",
		PlanID:     "starter",
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	if account.TrialStartedAt == nil || !account.TrialStartedAt.Equal(provisionedAt) {
		t.Fatalf("expected trial started at %v, got %v", provisionedAt, account.TrialStartedAt)
	}
	if account.TrialEnded {
		t.Fatal("fresh account must not have an ended trial")
	}
	if got := time.Duration(account.TrialDurationSeconds) * time.Second; got != 30*24*time.Hour {
		t.Fatalf("expected 30d trial window, got %v", got)
	}

	balances, err := store.GetBalances(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("get balances: %v", err)
	}
	if balances[ledgerdomain.SourceTrial] != 100 {
		t.Fatalf("expected trial allotment 100, got %d", balances[ledgerdomain.SourceTrial])
	}
	for _, source := range []ledgerdomain.Source{ledgerdomain.SourceCoupon, ledgerdomain.SourcePlan, ledgerdomain.SourcePurchased} {
		if balances[source] != 0 {
			t.Fatalf("expected %s bucket to start empty, got %d", source, balances[source])
		}
	}
}

func TestProvisionIsIdempotentPerShopDomain(t *testing.T) {
	svc, store := setupAccountService(t)

	first, err := svc.Provision(context.Background(), accountdomain.ProvisionRequest{
		ShopDomain: "repeat-shop.myshopify.com",
		PlanID:     "starter",
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	second, err := svc.Provision(context.Background(), accountdomain.ProvisionRequest{
		ShopDomain: "https://Repeat-Shop.myshopify.com/admin",
		PlanID:     "growth",
	})
	if err != nil {
		t.Fatalf("re-provision: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("same shop must map to one account: %s vs %s", first.ID, second.ID)
	}
	balances, err := store.GetBalances(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get balances: %v", err)
	}
	if balances[ledgerdomain.SourceTrial] != 100 {
		t.Fatalf("re-provision must not grant a second trial: got %d", balances[ledgerdomain.SourceTrial])
	}
}

func TestProvisionValidatesInput(t *testing.T) {
	svc, _ := setupAccountService(t)

	_, err := svc.Provision(context.Background(), accountdomain.ProvisionRequest{ShopDomain: "  ", PlanID: "starter"})
	if !errors.Is(err, accountdomain.ErrInvalidShopDomain) {
		t.Fatalf("expected invalid_shop_domain, got %v", err)
	}

	_, err = svc.Provision(context.Background(), accountdomain.ProvisionRequest{ShopDomain: "shop.myshopify.com", PlanID: ""})
	if !errors.Is(err, accountdomain.ErrInvalidPlan) {
		t.Fatalf("expected invalid_plan, got %v", err)
	}
}

func TestEndTrialFlipsFlagKeepsBalance(t *testing.T) {
	svc, store := setupAccountService(t)

	account, err := svc.Provision(context.Background(), accountdomain.ProvisionRequest{
		ShopDomain: "signal-shop.myshopify.com",
		PlanID:     "starter",
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	ended, err := svc.EndTrial(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("end trial: %v", err)
	}
	if !ended.TrialEnded {
		t.Fatal("expected the trial-ended flag to flip")
	}

	balances, err := store.GetBalances(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("get balances: %v", err)
	}
	if balances[ledgerdomain.SourceTrial] != 100 {
		t.Fatalf("ending the trial must not touch its balance, got %d", balances[ledgerdomain.SourceTrial])
	}

	// The signal is idempotent; a second delivery is a no-op.
	again, err := svc.EndTrial(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("end trial again: %v", err)
	}
	if !again.TrialEnded {
		t.Fatal("trial must stay ended")
	}
}

func TestEndTrialUnknownAccount(t *testing.T) {
	svc, _ := setupAccountService(t)

	_, err := svc.EndTrial(context.Background(), 42)
	if !errors.Is(err, accountdomain.ErrAccountNotFound) {
		t.Fatalf("expected account_not_found, got %v", err)
	}
}

func TestGetByIDUnknownAccount(t *testing.T) {
	svc, _ := setupAccountService(t)

	_, err := svc.GetByID(context.Background(), 42)
	if !errors.Is(err, accountdomain.ErrAccountNotFound) {
		t.Fatalf("expected account_not_found, got %v", err)
	}
}

func TestNormalizeShopDomain(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Shop.MyShopify.com", "shop.myshopify.com"},
		{"https://shop.myshopify.com/admin/apps?x=1", "shop.myshopify.com"},
		{"  http://shop.myshopify.com.  ", "shop.myshopify.com"},
		{"shop.myshopify.com#section", "shop.myshopify.com"},
	}
	for _, tc := range cases {
		if got := accountdomain.NormalizeShopDomain(tc.raw); got != tc.want {
			t.Fatalf("NormalizeShopDomain(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func setupAccountService(t *testing.T) (accountdomain.Service, ledgerdomain.Store) {
	t.Helper()
	db := setupAccountTestDB(t)
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

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Locks:    ledger.NewAccountLocks(),
		Store:    store,
		TrialMgr: trialMgr,
		Clock:    clock.Fixed{At: provisionedAt},
	})
	return svc, store
}

func setupAccountTestDB(t *testing.T) *gorm.DB {
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
