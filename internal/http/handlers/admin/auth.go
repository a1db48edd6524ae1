package admin

import (
	"time"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string                 `json:"token"`
	User      map[string]interface{} `json:"user"`
	ExpiresAt string                 `json:"expires_at"`
}

// CreateAdminRequest 新建后台账号
type CreateAdminRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=manager dispatcher kitchen finance"`
}

// UpdateAdminRoleRequest 调整后台账号角色
type UpdateAdminRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=manager dispatcher kitchen finance"`
}

// AdminLogin 管理员登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	admin, token, expiresAt, err := h.AuthService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondWithMappedError(c, err, "login failed")
		return
	}
	response.Success(c, LoginResponse{
		Token: token,
		User: map[string]interface{}{
			"id":       admin.ID,
			"username": admin.Username,
			"role":     admin.Role,
		},
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// GetAdminMe 当前管理员信息与角色
func (h *Handler) GetAdminMe(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	admin, err := h.AuthService.GetAdmin(c.Request.Context(), adminID)
	if err != nil {
		respondWithMappedError(c, err, "fetch admin failed")
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		requestLog(c).Warnw("admin_me_roles_fetch_failed", "admin_id", adminID, "error", err)
		roles = []string{}
	}
	response.Success(c, gin.H{
		"admin": admin,
		"roles": roles,
	})
}

// ListAdmins 后台账号列表
func (h *Handler) ListAdmins(c *gin.Context) {
	admins, err := h.AdminRepo.List(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "fetch admins failed", err)
		return
	}
	response.Success(c, admins)
}

// CreateAdmin 新建后台账号并绑定预置角色
func (h *Handler) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	admin, err := h.AuthService.CreateAdmin(c.Request.Context(), service.CreateAdminInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondWithMappedError(c, err, "create admin failed")
		return
	}
	if err := h.AuthzService.AssignBuiltinRole(admin.ID, admin.Role); err != nil {
		respondError(c, response.CodeInternal, "assign admin role failed", err)
		return
	}
	h.audit(c, service.AuditActionAdminCreate, "admin", admin.ID, models.JSON{
		"username": admin.Username,
		"role":     admin.Role,
	})
	response.Success(c, admin)
}

// UpdateAdminRole 调整后台账号角色
func (h *Handler) UpdateAdminRole(c *gin.Context) {
	targetID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateAdminRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if _, err := h.AuthService.GetAdmin(c.Request.Context(), targetID); err != nil {
		respondWithMappedError(c, err, "fetch admin failed")
		return
	}
	if err := h.AuthzService.AssignBuiltinRole(targetID, req.Role); err != nil {
		respondError(c, response.CodeInternal, "assign admin role failed", err)
		return
	}
	roles, _ := h.AuthzService.GetAdminRoles(targetID)
	h.audit(c, service.AuditActionAdminRoleChange, "admin", targetID, models.JSON{"role": req.Role})
	response.Success(c, gin.H{"admin_id": targetID, "roles": roles})
}
