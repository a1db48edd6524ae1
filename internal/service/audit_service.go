package service

import (
	"context"
	"strings"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"
)

// 审计动作
const (
	AuditActionKitchenOpen     = "kitchen_open"
	AuditActionKitchenClose    = "kitchen_close"
	AuditActionOrderStatus     = "order_status"
	AuditActionCourierAssign   = "courier_assign"
	AuditActionCODConfirm      = "cod_confirm"
	AuditActionPrintRetry      = "print_retry"
	AuditActionSettingUpdate   = "setting_update"
	AuditActionAdminCreate     = "admin_create"
	AuditActionAdminRoleChange = "admin_role_change"
)

// AuditRecordInput 审计记录输入
type AuditRecordInput struct {
	AdminID       uint
	AdminUsername string
	Action        string
	TargetType    string
	TargetID      uint
	RequestID     string
	Detail        models.JSON
}

// AuditService 后台人工操作审计
type AuditService struct {
	repo  repository.AuditLogRepository
	clock clock.Clock
}

// NewAuditService 创建审计服务
func NewAuditService(repo repository.AuditLogRepository, clk clock.Clock) *AuditService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &AuditService{repo: repo, clock: clk}
}

// Record 写入一条审计日志；缺少操作人或动作时忽略。
// 写入失败只记日志，不影响业务操作结果。
func (s *AuditService) Record(ctx context.Context, input AuditRecordInput) {
	if s == nil || s.repo == nil {
		return
	}
	action := strings.TrimSpace(input.Action)
	if input.AdminID == 0 || action == "" {
		return
	}
	item := &models.AuditLog{
		AdminID:       input.AdminID,
		AdminUsername: strings.TrimSpace(input.AdminUsername),
		Action:        action,
		TargetType:    strings.TrimSpace(input.TargetType),
		TargetID:      input.TargetID,
		RequestID:     strings.TrimSpace(input.RequestID),
		DetailJSON:    input.Detail,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		logger.WithContext(ctx).Warnw("audit_log_record_failed", "action", action, "admin_id", input.AdminID, "error", err)
	}
}

// List 管理端查询审计日志
func (s *AuditService) List(ctx context.Context, filter repository.AuditLogListFilter) ([]models.AuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.AuditLog{}, 0, nil
	}
	return s.repo.List(ctx, filter)
}
