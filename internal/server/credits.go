package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	creditsdomain "github.com/veeville2011/try-this-look-sub005/internal/credits/domain"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
)

type redeemCouponRequest struct {
	AccountID     string `json:"account_id"`
	CouponCode    string `json:"coupon_code"`
	TransactionID string `json:"transaction_id"`
}

type confirmPurchaseRequest struct {
	AccountID     string `json:"account_id"`
	PackageID     string `json:"package_id"`
	CreditAmount  int64  `json:"credit_amount"`
	TransactionID string `json:"transaction_id"`
}

type creditResponse struct {
	Trial     int64 `json:"trial"`
	Coupon    int64 `json:"coupon"`
	Plan      int64 `json:"plan"`
	Purchased int64 `json:"purchased"`
	Total     int64 `json:"total"`
	Replayed  bool  `json:"replayed"`
}

func (s *Server) RedeemCoupon(c *gin.Context) {
	var req redeemCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.AccountID, accountdomain.ErrInvalidAccount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.couponSvc.Redeem(c.Request.Context(), creditsdomain.RedeemCouponRequest{
		AccountID:     accountID,
		CouponCode:    req.CouponCode,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, buildCreditResponse(result))
}

func (s *Server) ConfirmPurchase(c *gin.Context) {
	var req confirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.AccountID, accountdomain.ErrInvalidAccount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.purchaseSvc.Confirm(c.Request.Context(), creditsdomain.ConfirmPurchaseRequest{
		AccountID:     accountID,
		PackageID:     req.PackageID,
		CreditAmount:  req.CreditAmount,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, buildCreditResponse(result))
}

func buildCreditResponse(result *creditsdomain.CreditResult) creditResponse {
	return creditResponse{
		Trial:     result.Balances[ledgerdomain.SourceTrial],
		Coupon:    result.Balances[ledgerdomain.SourceCoupon],
		Plan:      result.Balances[ledgerdomain.SourcePlan],
		Purchased: result.Balances[ledgerdomain.SourcePurchased],
		Total:     result.Balances.Total(),
		Replayed:  result.Replayed,
	}
}
