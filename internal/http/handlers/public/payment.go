package public

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultSignatureHeader = "X-Signature"
	maxWebhookBodyBytes    = 1 << 20
)

// VerifyPaymentRequest 顾客支付后主动核验
type VerifyPaymentRequest struct {
	OrderNo   string `json:"order_no" binding:"required"`
	Reference string `json:"reference" binding:"required"`
}

func paymentResultPayload(result *service.PaymentResult, duplicate bool) gin.H {
	payload := gin.H{
		"accepted":  true,
		"duplicate": duplicate,
	}
	if result == nil {
		return payload
	}
	payload["payment_status"] = result.Status
	if result.Order != nil {
		payload["order_no"] = result.Order.OrderNo
		payload["order_status"] = result.Order.Status
	}
	return payload
}

// VerifyPayment 支付核验入口，与 webhook 收敛到同一处理管线
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	result, err := h.PaymentService.VerifyPayment(c.Request.Context(), req.OrderNo, req.Reference)
	if errors.Is(err, service.ErrAlreadyProcessed) {
		response.Success(c, paymentResultPayload(result, true))
		return
	}
	if err != nil {
		requestLog(c).Warnw("payment_verify_failed", "order_no", req.OrderNo, "error", err)
		respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, "verify payment failed")
		return
	}
	response.Success(c, paymentResultPayload(result, false))
}

// PaymentWebhook 支付网关回调：签名错误返回 HTTP 401，重复投递按成功应答，内部故障返回 503
func (h *Handler) PaymentWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warnw("payment_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	header := defaultSignatureHeader
	if h.Config != nil && strings.TrimSpace(h.Config.Payment.WebhookSignatureHeader) != "" {
		header = strings.TrimSpace(h.Config.Payment.WebhookSignatureHeader)
	}
	signature := strings.TrimSpace(c.GetHeader(header))
	log.Infow("payment_webhook_http_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"has_signature", signature != "",
	)

	result, err := h.PaymentService.HandleWebhook(c.Request.Context(), body, signature)
	switch {
	case err == nil:
		response.Success(c, paymentResultPayload(result, false))
	case errors.Is(err, service.ErrAlreadyProcessed):
		response.Success(c, paymentResultPayload(result, true))
	case errors.Is(err, service.ErrWebhookSignatureInvalid):
		response.WithHTTPStatus(c, http.StatusUnauthorized, response.CodeUnauthorized, "signature invalid")
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNotFound):
		log.Warnw("payment_webhook_rejected", "error", err)
		respondWithMappedError(c, err, paymentErrorRules, response.CodeBadRequest, "webhook rejected")
	default:
		// 非 2xx 让网关按其退避策略重投
		log.Errorw("payment_webhook_handle_failed", "error", err)
		response.WithHTTPStatus(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, "temporarily unavailable")
	}
}
