package orderbook

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calder-fi/optio-api/internal/types"
	"github.com/calder-fi/optio-api/pkg/response"
)

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// QueryHandler handles GET /orderbook/:token with optional is_call,
// min_duration, max_duration and min_size query parameters.
func (h *GinHandlers) QueryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter Filter

		if v := c.Query("is_call"); v != "" {
			isCall := v == "true"
			filter.IsCall = &isCall
		}
		if v := c.Query("min_duration"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				response.BadRequest(c, "min_duration must be an integer")
				return
			}
			filter.MinDuration = &n
		}
		if v := c.Query("max_duration"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				response.BadRequest(c, "max_duration must be an integer")
				return
			}
			filter.MaxDuration = &n
		}
		if v := c.Query("min_size"); v != "" {
			n, err := types.ParseAmount(v)
			if err != nil {
				response.BadRequest(c, "min_size must be a decimal-string integer")
				return
			}
			filter.MinSize = n
		}

		entries, err := h.service.Query(c.Param("token"), filter, time.Now())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"orderbook": entries, "count": len(entries)})
	}
}
