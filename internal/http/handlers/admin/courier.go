package admin

import (
	"strings"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/repository"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCourierRequest 新增骑手
type CreateCourierRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Phone       string `json:"phone" binding:"required"`
	VehicleType string `json:"vehicle_type" binding:"max=32"`
}

// UpdateCourierLocationRequest 骑手位置上报
type UpdateCourierLocationRequest struct {
	Lat *float64 `json:"lat" binding:"required,latitude"`
	Lng *float64 `json:"lng" binding:"required,longitude"`
}

// UpdateStatusRequest 通用状态变更
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListCouriers 骑手列表
func (h *Handler) ListCouriers(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)
	couriers, total, err := h.AssignmentService.ListCouriers(c.Request.Context(), repository.CourierListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "fetch couriers failed", err)
		return
	}
	response.SuccessWithPage(c, couriers, handlershared.BuildPagination(page, pageSize, total))
}

// CreateCourier 新增骑手
func (h *Handler) CreateCourier(c *gin.Context) {
	var req CreateCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	courier, err := h.AssignmentService.CreateCourier(c.Request.Context(), service.CreateCourierInput{
		Name:        req.Name,
		Phone:       req.Phone,
		VehicleType: req.VehicleType,
	}, h.Config.Restaurant.CountryCode)
	if err != nil {
		respondWithMappedError(c, err, "create courier failed")
		return
	}
	response.Success(c, courier)
}

// UpdateCourierLocation 更新骑手位置
func (h *Handler) UpdateCourierLocation(c *gin.Context) {
	courierID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateCourierLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if err := h.AssignmentService.UpdateCourierLocation(c.Request.Context(), courierID, *req.Lat, *req.Lng); err != nil {
		respondWithMappedError(c, err, "update courier location failed")
		return
	}
	response.Success(c, gin.H{"courier_id": courierID, "lat": *req.Lat, "lng": *req.Lng})
}

// UpdateCourierStatus 骑手上下线
func (h *Handler) UpdateCourierStatus(c *gin.Context) {
	courierID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if err := h.AssignmentService.SetCourierStatus(c.Request.Context(), courierID, req.Status); err != nil {
		respondWithMappedError(c, err, "update courier status failed")
		return
	}
	response.Success(c, gin.H{"courier_id": courierID, "status": req.Status})
}

// UpdateAssignmentStatus 推进配送指派状态（接单/取餐/送达/拒单/取消）
func (h *Handler) UpdateAssignmentStatus(c *gin.Context) {
	assignmentID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	assignment, err := h.AssignmentService.UpdateAssignmentStatus(c.Request.Context(), assignmentID, req.Status)
	if err != nil {
		respondWithMappedError(c, err, "update assignment status failed")
		return
	}
	response.Success(c, assignment)
}
