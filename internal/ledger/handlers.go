package ledger

import (
	"github.com/gin-gonic/gin"

	"github.com/calder-fi/optio-api/internal/types"
	"github.com/calder-fi/optio-api/pkg/response"
)

// GinHandlers contains HTTP handlers for offer and position endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateOfferHandler handles POST /offers.
func (h *GinHandlers) CreateOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var offer types.Offer
		if err := c.ShouldBindJSON(&offer); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.AddOffer(c.Request.Context(), &offer); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"offer_hash": offer.OfferHash})
	}
}

// CancelOfferHandler handles DELETE /offers/:offer_hash.
func (h *GinHandlers) CancelOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		offerHash := c.Param("offer_hash")
		if offerHash == "" {
			response.BadRequest(c, "offer hash is required")
			return
		}

		if err := h.service.CancelOffer(offerHash); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"offer_hash": offerHash, "cancelled": true})
	}
}

// GetOfferHandler handles GET /offers/:offer_hash.
func (h *GinHandlers) GetOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := h.service.GetOffer(c.Param("offer_hash"))
		response.Handle(c, view, err)
	}
}

// ListOffersHandler handles GET /offers.
func (h *GinHandlers) ListOffersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		offers, err := h.service.ListOffers()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"offers": offers, "count": len(offers)})
	}
}

// PositionsHandler handles GET /positions/:address. The role query parameter
// switches between taker (default) and writer positions.
func (h *GinHandlers) PositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Param("address")

		var (
			positions []types.ActiveOption
			err       error
		)
		if c.Query("role") == "writer" {
			positions, err = h.service.WriterPositions(address)
		} else {
			positions, err = h.service.TakerPositions(address)
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"positions": positions, "count": len(positions)})
	}
}

// GetTokenConfigHandler handles GET /config/:token.
func (h *GinHandlers) GetTokenConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := h.service.TokenConfig(c.Request.Context(), c.Param("token"))
		response.Handle(c, cfg, err)
	}
}

// GetOptionHandler handles GET /options/:token_id.
func (h *GinHandlers) GetOptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		option, err := h.service.GetOption(c.Request.Context(), c.Param("token_id"))
		response.Handle(c, option, err)
	}
}
