package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	renewaldomain "github.com/veeville2011/try-this-look-sub005/internal/renewal/domain"
)

type periodRenewalRequest struct {
	AccountID       string    `json:"account_id"`
	PeriodID        string    `json:"period_id"`
	IncludedCredits int64     `json:"included_credits"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
}

func (s *Server) PeriodRenewal(c *gin.Context) {
	var req periodRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.AccountID, accountdomain.ErrInvalidAccount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	applied, err := s.reconciler.OnPeriodRenewed(c.Request.Context(), renewaldomain.RenewalNotification{
		AccountID:       accountID,
		PeriodID:        req.PeriodID,
		IncludedCredits: req.IncludedCredits,
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "applied": applied})
}

type trialEndedRequest struct {
	AccountID string `json:"account_id"`
}

// TrialEnded applies the billing provider's "trial consumed" signal. The
// remaining trial balance stays spendable; only the active flag flips.
func (s *Server) TrialEnded(c *gin.Context) {
	var req trialEndedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.AccountID, accountdomain.ErrInvalidAccount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.accountSvc.EndTrial(c.Request.Context(), accountID)
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
		"status":   "ok",
		"balances": s.buildBalancesResponse(account, balances),
	})
}
