package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ProvisionRequest creates an account at first install.
type ProvisionRequest struct {
	ShopDomain string `json:"shop_domain"`
	PlanID     string `json:"plan_id"`
}

// Service provisions and resolves merchant accounts.
type Service interface {
	// Provision creates the account with its four buckets and activates
	// the trial. Provisioning an already-known shop domain returns the
	// existing account unchanged.
	Provision(ctx context.Context, req ProvisionRequest) (*Account, error)

	// EndTrial applies the explicit "trial consumed" signal. The trial
	// bucket balance is left untouched; ending an already-ended trial is a
	// no-op. Returns the account after the transition.
	EndTrial(ctx context.Context, id snowflake.ID) (*Account, error)

	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	GetByShopDomain(ctx context.Context, shopDomain string) (*Account, error)
}

var (
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrInvalidShopDomain = errors.New("invalid_shop_domain")
	ErrInvalidPlan       = errors.New("invalid_plan")
	ErrInvalidAccount    = errors.New("invalid_account")
)
