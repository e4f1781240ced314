package settlement

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/calder-fi/optio-api/internal/types"
	"github.com/calder-fi/optio-api/pkg/response"
)

// GinHandlers contains HTTP handlers for settlement endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type initiateRequest struct {
	TokenID      string `json:"token_id" binding:"required"`
	MinBuyAmount string `json:"min_buy_amount" binding:"required"`
}

func (h *GinHandlers) InitiateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req initiateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		minBuy, err := types.ParseAmount(req.MinBuyAmount)
		if err != nil {
			response.BadRequest(c, "min_buy_amount must be a decimal-string integer")
			return
		}

		result, err := h.service.Initiate(c.Request.Context(), req.TokenID, minBuy)
		response.Handle(c, result, err)
	}
}

type approveRequest struct {
	TokenID        string `json:"token_id" binding:"required"`
	ConditionsHash string `json:"settlement_conditions_hash" binding:"required"`
	TakerSignature string `json:"taker_signature" binding:"required"`
}

func (h *GinHandlers) ApproveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req approveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.Approve(req.TokenID, req.ConditionsHash, req.TakerSignature)
		if errors.Is(err, ErrConditionsMismatch) {
			response.Conflict(c, err.Error())
			return
		}
		response.Handle(c, result, err)
	}
}

type submitRequest struct {
	TokenID string `json:"token_id" binding:"required"`
}

func (h *GinHandlers) SubmitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.Submit(c.Request.Context(), req.TokenID)
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) RejectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenID := c.Param("token_id")
		if err := h.service.Reject(tokenID); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"token_id": tokenID, "status": StatusRejected})
	}
}

func (h *GinHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := h.service.Status(c.Param("token_id"))
		response.Handle(c, view, err)
	}
}

func (h *GinHandlers) OrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := h.service.OrderStatus(c.Request.Context(), c.Param("order_uid"))
		response.Handle(c, status, err)
	}
}
