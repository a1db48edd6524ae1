package admin

import (
	"strings"

	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SetKitchenStateRequest 手动开关店
type SetKitchenStateRequest struct {
	IsOpen *bool  `json:"is_open" binding:"required"`
	Reason string `json:"reason" binding:"max=255"`
}

// GetKitchenState 营业状态、负载与营业时间判定
func (h *Handler) GetKitchenState(c *gin.Context) {
	ctx := c.Request.Context()
	state, err := h.CapacityService.GetState(ctx)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch kitchen state failed", err)
		return
	}
	decision, err := h.OperatingHoursService.ShouldBeOpenNow(ctx)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch kitchen state failed", err)
		return
	}
	response.Success(c, gin.H{
		"state":        state,
		"reopen_below": service.ReopenThreshold(state.MaxActiveOrders),
		"hours":        decision,
	})
}

// SetKitchenState 手动开关店（覆盖自动闸门当前状态）
func (h *Handler) SetKitchenState(c *gin.Context) {
	var req SetKitchenStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual override by " + getAdminUsername(c)
	}
	state, err := h.CapacityService.SetOpen(c.Request.Context(), *req.IsOpen, reason)
	if err != nil {
		respondWithMappedError(c, err, "update kitchen state failed")
		return
	}
	action := service.AuditActionKitchenClose
	if state.IsOpen {
		action = service.AuditActionKitchenOpen
	}
	h.audit(c, action, "operating_state", state.ID, models.JSON{"reason": reason})
	response.Success(c, state)
}

// EvaluateCapacity 立即执行一次负载评估
func (h *Handler) EvaluateCapacity(c *gin.Context) {
	result, err := h.CapacityService.Evaluate(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, "evaluate capacity failed")
		return
	}
	response.Success(c, result)
}
