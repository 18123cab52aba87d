package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	consumptiondomain "github.com/veeville2011/try-this-look-sub005/internal/consumption/domain"
	creditsdomain "github.com/veeville2011/try-this-look-sub005/internal/credits/domain"
	ledgerdomain "github.com/veeville2011/try-this-look-sub005/internal/ledger/domain"
	overagedomain "github.com/veeville2011/try-this-look-sub005/internal/overage/domain"
	renewaldomain "github.com/veeville2011/try-this-look-sub005/internal/renewal/domain"
)

var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "malformed request body"}
}

// AbortWithError maps domain errors to the HTTP error envelope.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch {
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		status, code, message = http.StatusNotFound, "account_not_found", "unknown account"
	case errors.Is(err, creditsdomain.ErrCouponNotFound):
		status, code, message = http.StatusNotFound, "coupon_not_found", "unknown coupon code"
	case errors.Is(err, ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, creditsdomain.ErrCouponAlreadyRedeemed):
		status, code, message = http.StatusConflict, "coupon_already_redeemed", "coupon was already redeemed by this account"
	case errors.Is(err, overagedomain.ErrOverageUnavailable):
		// The one consumption failure that reaches callers: the request
		// must be blocked visibly with an actionable message.
		status, code, message = http.StatusPaymentRequired, "overage_unavailable", "all credit buckets are empty and no valid payment method is on file; add a payment method to continue"
	case errors.Is(err, accountdomain.ErrInvalidShopDomain),
		errors.Is(err, accountdomain.ErrInvalidPlan),
		errors.Is(err, accountdomain.ErrInvalidAccount),
		errors.Is(err, consumptiondomain.ErrInvalidQuantity),
		errors.Is(err, consumptiondomain.ErrMissingIdempotencyKey),
		errors.Is(err, creditsdomain.ErrInvalidCoupon),
		errors.Is(err, creditsdomain.ErrInvalidAmount),
		errors.Is(err, creditsdomain.ErrInvalidTransaction),
		errors.Is(err, creditsdomain.ErrInvalidPackage),
		errors.Is(err, renewaldomain.ErrInvalidPeriod),
		errors.Is(err, renewaldomain.ErrInvalidCredits),
		errors.Is(err, overagedomain.ErrInvalidQuantity),
		errors.Is(err, ledgerdomain.ErrInvalidAdjustment):
		status, code, message = http.StatusBadRequest, err.Error(), "invalid request"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &apiError{Status: status, Code: code, Message: message}})
}
