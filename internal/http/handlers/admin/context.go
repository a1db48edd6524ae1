package admin

import (
	"context"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "admin_id")
}

func getAdminUsername(c *gin.Context) string {
	if value, ok := c.Get("username"); ok {
		if name, ok := value.(string); ok {
			return name
		}
	}
	return ""
}

// audit 记录后台人工操作，c 中缺少管理员信息时忽略
func (h *Handler) audit(c *gin.Context, action, targetType string, targetID uint, detail models.JSON) {
	if h.AuditService == nil {
		return
	}
	adminID, _ := c.Get("admin_id")
	id, _ := adminID.(uint)
	h.AuditService.Record(auditContext(c), service.AuditRecordInput{
		AdminID:       id,
		AdminUsername: getAdminUsername(c),
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		RequestID:     handlershared.RequestID(c),
		Detail:        detail,
	})
}

func auditContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
