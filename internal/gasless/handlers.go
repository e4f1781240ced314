package gasless

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/calder-fi/optio-api/internal/chain"
	"github.com/calder-fi/optio-api/internal/types"
	"github.com/calder-fi/optio-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the gasless take endpoints.
type GinHandlers struct {
	relayer   *Relayer
	estimator *Estimator
}

func NewGinHandlers(relayer *Relayer, estimator *Estimator) *GinHandlers {
	return &GinHandlers{relayer: relayer, estimator: estimator}
}

type takeRequest struct {
	Offer          types.Offer         `json:"offer" binding:"required"`
	OfferSignature string              `json:"offer_signature" binding:"required"`
	Taker          string              `json:"taker" binding:"required"`
	FillAmount     string              `json:"fill_amount" binding:"required"`
	Duration       int64               `json:"duration" binding:"required"`
	PremiumAuth    types.Authorization `json:"premium_auth" binding:"required"`
	GasAuth        types.Authorization `json:"gas_auth" binding:"required"`
}

// TakeHandler handles POST /gasless/take.
func (h *GinHandlers) TakeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req takeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		fillAmount, err := types.ParseAmount(req.FillAmount)
		if err != nil {
			response.BadRequest(c, "fill_amount must be a decimal-string integer")
			return
		}

		result, err := h.relayer.Submit(c.Request.Context(), chain.TakeRequest{
			Offer:          req.Offer,
			OfferSignature: req.OfferSignature,
			Taker:          req.Taker,
			FillAmount:     fillAmount,
			Duration:       req.Duration,
			PremiumAuth:    req.PremiumAuth,
			GasAuth:        req.GasAuth,
		})
		response.Handle(c, result, err)
	}
}

// EstimateHandler handles GET /gasless/estimate. The fallback quote is a
// success, never an error.
func (h *GinHandlers) EstimateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gasLimit := uint64(DefaultTakeGasLimit)
		if v := c.Query("gas_limit"); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil || n == 0 {
				response.BadRequest(c, "gas_limit must be a positive integer")
				return
			}
			gasLimit = n
		}

		response.Success(c, h.estimator.EstimateCost(c.Request.Context(), gasLimit))
	}
}

// VaultStatusHandler handles GET /gasless/vault.
func (h *GinHandlers) VaultStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := h.relayer.VaultStatus(c.Request.Context())
		response.Handle(c, status, err)
	}
}

// ReconcileHandler handles GET /gasless/reconcile/:tx_hash.
func (h *GinHandlers) ReconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.relayer.Reconcile(c.Request.Context(), c.Param("tx_hash"))
		response.Handle(c, result, err)
	}
}
