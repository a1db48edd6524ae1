package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs 后台操作审计日志
func (h *Handler) ListAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)
	filter := repository.AuditLogListFilter{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
	}
	if raw := strings.TrimSpace(c.Query("admin_id")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.AdminID = uint(id)
		}
	}
	if raw := strings.TrimSpace(c.Query("target_id")); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.TargetID = uint(id)
		}
	}
	var err error
	if filter.CreatedFrom, err = handlershared.ParseTimeNullable(c.Query("created_from")); err != nil {
		respondError(c, response.CodeBadRequest, "created_from invalid", err)
		return
	}
	if filter.CreatedTo, err = handlershared.ParseTimeNullable(c.Query("created_to")); err != nil {
		respondError(c, response.CodeBadRequest, "created_to invalid", err)
		return
	}

	logs, total, err := h.AuditService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch audit logs failed", err)
		return
	}
	response.SuccessWithPage(c, logs, handlershared.BuildPagination(page, pageSize, total))
}
