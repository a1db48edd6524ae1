package public

import (
	"github.com/mealdash-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetKitchenStatus 门店是否接单：负载闸门与营业时间
func (h *Handler) GetKitchenStatus(c *gin.Context) {
	ctx := c.Request.Context()
	state, err := h.CapacityService.GetCachedState(ctx)
	if err != nil {
		respondError(c, response.CodeInternal, "kitchen status unavailable", err)
		return
	}
	decision, err := h.OperatingHoursService.ShouldBeOpenNow(ctx)
	if err != nil {
		respondError(c, response.CodeInternal, "kitchen status unavailable", err)
		return
	}
	response.Success(c, gin.H{
		"accepting_orders": state.IsOpen,
		"within_hours":     decision.ShouldBeOpen,
		"hours":            decision,
	})
}
