package admin

import (
	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePromoCodeRequest 创建优惠码
type CreatePromoCodeRequest struct {
	Code           string          `json:"code" binding:"required,max=64"`
	DiscountType   string          `json:"discount_type" binding:"required,oneof=percentage fixed_amount"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MaxDiscount    decimal.Decimal `json:"max_discount"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	UsageLimit     int             `json:"usage_limit" binding:"min=0"`
	ReferrerID     *uint           `json:"referrer_id"`
	StartsAt       string          `json:"starts_at"`
	ExpiresAt      string          `json:"expires_at"`
}

// CreateReferrerRequest 创建推荐人
type CreateReferrerRequest struct {
	Name            string          `json:"name" binding:"required,max=120"`
	Phone           string          `json:"phone" binding:"max=32"`
	CommissionType  string          `json:"commission_type" binding:"required,oneof=percentage fixed_amount"`
	CommissionValue decimal.Decimal `json:"commission_value"`
}

// ListPromoCodes 优惠码列表
func (h *Handler) ListPromoCodes(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)
	promos, total, err := h.PromoService.ListPromos(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch promo codes failed", err)
		return
	}
	response.SuccessWithPage(c, promos, handlershared.BuildPagination(page, pageSize, total))
}

// CreatePromoCode 创建优惠码
func (h *Handler) CreatePromoCode(c *gin.Context) {
	var req CreatePromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	startsAt, err := handlershared.ParseTimeNullable(req.StartsAt)
	if err != nil {
		respondError(c, response.CodeBadRequest, "starts_at invalid", err)
		return
	}
	expiresAt, err := handlershared.ParseTimeNullable(req.ExpiresAt)
	if err != nil {
		respondError(c, response.CodeBadRequest, "expires_at invalid", err)
		return
	}
	promo, err := h.PromoService.CreatePromo(c.Request.Context(), service.CreatePromoInput{
		Code:           req.Code,
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MaxDiscount:    req.MaxDiscount,
		MinOrderAmount: req.MinOrderAmount,
		UsageLimit:     req.UsageLimit,
		ReferrerID:     req.ReferrerID,
		StartsAt:       startsAt,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		respondWithMappedError(c, err, "create promo code failed")
		return
	}
	response.Success(c, promo)
}

// ListReferrers 推荐人列表
func (h *Handler) ListReferrers(c *gin.Context) {
	page, pageSize := handlershared.PageQuery(c)
	referrers, total, err := h.PromoService.ListReferrers(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "fetch referrers failed", err)
		return
	}
	response.SuccessWithPage(c, referrers, handlershared.BuildPagination(page, pageSize, total))
}

// CreateReferrer 创建推荐人
func (h *Handler) CreateReferrer(c *gin.Context) {
	var req CreateReferrerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	referrer, err := h.PromoService.CreateReferrer(c.Request.Context(), service.CreateReferrerInput{
		Name:            req.Name,
		Phone:           req.Phone,
		CommissionType:  req.CommissionType,
		CommissionValue: req.CommissionValue,
	})
	if err != nil {
		respondWithMappedError(c, err, "create referrer failed")
		return
	}
	response.Success(c, referrer)
}
