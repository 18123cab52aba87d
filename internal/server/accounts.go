package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	"github.com/veeville2011/try-this-look-sub005/internal/trial"
)

type balancesResponse struct {
	Trial       int64      `json:"trial"`
	Coupon      int64      `json:"coupon"`
	Plan        int64      `json:"plan"`
	Purchased   int64      `json:"purchased"`
	Total       int64      `json:"total"`
	TrialActive bool       `json:"trial_active"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountdomain.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Provision(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balances, err := s.store.GetBalances(c.Request.Context(), account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":  account,
		"balances": s.buildBalancesResponse(account, balances),
	})
}

func (s *Server) GetBalances(c *gin.Context) {
	accountID, err := parseID(c.Param("account_id"), accountdomain.ErrInvalidAccount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.accountSvc.GetByID(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balances, err := s.store.GetBalances(c.Request.Context(), account.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.buildBalancesResponse(account, balances))
}

// buildBalancesResponse evaluates trial status on the fly; the read path
// never writes the ended flag, the next consumption persists it.
func (s *Server) buildBalancesResponse(account *accountdomain.Account, balances ledgerdomain.Balances) balancesResponse {
	state := account.TrialState()
	return balancesResponse{
		Trial:       balances[ledgerdomain.SourceTrial],
		Coupon:      balances[ledgerdomain.SourceCoupon],
		Plan:        balances[ledgerdomain.SourcePlan],
		Purchased:   balances[ledgerdomain.SourcePurchased],
		Total:       balances.Total(),
		TrialActive: trial.Status(state, s.clock.Now()) == trial.PhaseActive,
		TrialEndsAt: state.EndsAt(),
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
