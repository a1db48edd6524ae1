package admin

import (
	"strings"

	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateOrderStatusRequest 订单状态流转
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdminOrderDetail 管理端订单详情
type AdminOrderDetail struct {
	*models.Order
	Assignments []models.DeliveryAssignment `json:"assignments"`
	Payments    []models.Payment            `json:"payments"`
}

// AdminListOrders 订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)
	createdFrom, err := handlershared.ParseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_from invalid", err)
		return
	}
	createdTo, err := handlershared.ParseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_to invalid", err)
		return
	}

	orders, total, err := h.OrderService.List(c.Request.Context(), repository.OrderListFilter{
		Page:          page,
		PageSize:      pageSize,
		Status:        strings.TrimSpace(c.Query("status")),
		CustomerPhone: strings.TrimSpace(c.Query("phone")),
		OrderNo:       strings.TrimSpace(c.Query("order_no")),
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "fetch orders failed", err)
		return
	}
	response.SuccessWithPage(c, orders, handlershared.BuildPagination(page, pageSize, total))
}

// AdminGetOrder 订单详情（含派单与支付流水）
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	order, err := h.OrderService.Get(ctx, orderID)
	if err != nil {
		respondWithMappedError(c, err, "fetch order failed")
		return
	}
	assignments, err := h.AssignmentService.AssignmentsForOrder(ctx, orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch order failed", err)
		return
	}
	payments, err := h.PaymentService.ListEvents(ctx, orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch order failed", err)
		return
	}
	response.Success(c, AdminOrderDetail{
		Order:       order,
		Assignments: assignments,
		Payments:    payments,
	})
}

// AdminUpdateOrderStatus 后厨/调度推进订单状态
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	order, err := h.OrderService.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondWithMappedError(c, err, "update order status failed")
		return
	}
	h.audit(c, service.AuditActionOrderStatus, "order", order.ID, models.JSON{"status": order.Status})
	response.Success(c, order)
}

// AdminAssignCourier 手动触发派单
func (h *Handler) AdminAssignCourier(c *gin.Context) {
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	result, err := h.AssignmentService.Assign(c.Request.Context(), orderID, service.AssignedByAdmin(adminID))
	if err != nil {
		respondWithMappedError(c, err, "assign courier failed")
		return
	}
	h.audit(c, service.AuditActionCourierAssign, "order", orderID, models.JSON{
		"courier_id": result.Courier.ID,
		"score":      result.Score,
	})
	response.Success(c, result)
}

// AdminListOrderAssignments 订单派单历史
func (h *Handler) AdminListOrderAssignments(c *gin.Context) {
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	assignments, err := h.AssignmentService.AssignmentsForOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch assignments failed", err)
		return
	}
	response.Success(c, assignments)
}

// AdminListOrderPayments 订单支付事件流水
func (h *Handler) AdminListOrderPayments(c *gin.Context) {
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.PaymentService.ListEvents(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch payments failed", err)
		return
	}
	response.Success(c, payments)
}

// AdminConfirmCOD 确认货到付款订单
func (h *Handler) AdminConfirmCOD(c *gin.Context) {
	orderID, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	result, err := h.PaymentService.ConfirmCashOnDelivery(c.Request.Context(), orderID, adminID)
	if err != nil {
		respondWithMappedError(c, err, "confirm cash on delivery failed")
		return
	}
	h.audit(c, service.AuditActionCODConfirm, "order", orderID, nil)
	response.Success(c, gin.H{
		"order":      result.Order,
		"commission": result.Commission,
		"print_job":  result.PrintJob,
	})
}
