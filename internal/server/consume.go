package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accountdomain "github.com/veeville2011/try-this-look-sub005/internal/account/domain"
	consumptiondomain "github.com/veeville2011/try-this-look-sub005/internal/consumption/domain"
)

type consumeRequest struct {
	AccountID      string `json:"account_id"`
	Quantity       int64  `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Server) Consume(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.AccountID, accountdomain.ErrInvalidAccount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.engine.Consume(c.Request.Context(), consumptiondomain.ConsumeRequest{
		AccountID:      accountID,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
