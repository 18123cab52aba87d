// Package gateway implements the billing-method check against the commerce
// platform's billing API.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/veeville2011/try-this-look-sub005/internal/config"
	overagedomain "github.com/veeville2011/try-this-look-sub005/internal/overage/domain"
)

// HTTPGateway asks the platform whether the account has a chargeable billing
// method on file. Any non-200 answer, transport error, or deadline counts as
// unavailable; the ledger never guesses about payment state.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPGateway(cfg config.Config, log *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BillingAPIBaseURL), "/"),
		client:  &http.Client{},
		log:     log.Named("overage.gateway"),
	}
}

func (g *HTTPGateway) VerifyBillingMethod(ctx context.Context, accountID snowflake.ID) error {
	if g.baseURL == "" {
		// No billing API configured (local development); the check is
		// skipped rather than blocking every overage.
		return nil
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/billing-method", g.baseURL, accountID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return overagedomain.ErrOverageUnavailable
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("billing method check failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
		return overagedomain.ErrOverageUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("billing method not chargeable",
			zap.String("account_id", accountID.String()),
			zap.Int("status", resp.StatusCode),
		)
		return overagedomain.ErrOverageUnavailable
	}
	return nil
}
