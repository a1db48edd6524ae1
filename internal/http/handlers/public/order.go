package public

import (
	"strings"

	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderItemRequest 订单菜品
type OrderItemRequest struct {
	Name      string          `json:"name" binding:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name" binding:"max=120"`
	CustomerPhone   string             `json:"customer_phone" binding:"required"`
	DeliveryAddress string             `json:"delivery_address" binding:"required,max=500"`
	DeliveryLat     *float64           `json:"delivery_lat" binding:"omitempty,latitude"`
	DeliveryLng     *float64           `json:"delivery_lng" binding:"omitempty,longitude"`
	Note            string             `json:"note" binding:"max=500"`
	PaymentMethod   string             `json:"payment_method" binding:"omitempty,oneof=online cod"`
	PromoCode       string             `json:"promo_code"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// QuotePromoRequest 优惠码试算请求
type QuotePromoRequest struct {
	Code     string          `json:"code" binding:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CreateOrder 顾客下单
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	items := make([]service.CreateOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CreateOrderItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	order, err := h.OrderService.Create(c.Request.Context(), service.CreateOrderInput{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     req.DeliveryLat,
		DeliveryLng:     req.DeliveryLng,
		Note:            req.Note,
		PaymentMethod:   req.PaymentMethod,
		PromoCode:       req.PromoCode,
		Items:           items,
	})
	if err != nil {
		respondWithMappedError(c, err, orderCreateErrorRules, response.CodeInternal, "create order failed")
		return
	}
	requestLog(c).Infow("public_order_created", "order_id", order.ID, "order_no", order.OrderNo, "status", order.Status)
	response.Success(c, order)
}

// GetOrderByOrderNo 顾客凭订单号与下单手机号查单
func (h *Handler) GetOrderByOrderNo(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	phone := strings.TrimSpace(c.Query("phone"))
	if orderNo == "" || phone == "" {
		respondError(c, response.CodeBadRequest, "order_no and phone are required", nil)
		return
	}
	order, err := h.OrderService.GetByOrderNo(c.Request.Context(), orderNo, phone)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "fetch order failed")
		return
	}
	response.Success(c, order)
}

// QuotePromo 下单前试算优惠码（只读，不占用次数）
func (h *Handler) QuotePromo(c *gin.Context) {
	var req QuotePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	discount, promo, err := h.PromoService.Quote(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		respondWithMappedError(c, err, orderCreateErrorRules, response.CodeInternal, "quote promo failed")
		return
	}
	response.Success(c, gin.H{
		"code":     promo.Code,
		"discount": discount.StringFixed(2),
	})
}
