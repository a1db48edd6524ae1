package public

import (
	handlershared "github.com/mealdash-next/internal/http/handlers/shared"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError = handlershared.MappedError

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, rules, fallbackCode, fallbackMsg)
}

var orderCreateErrorRules = []mappedHandlerError{
	{Target: service.ErrKitchenClosed, Code: response.CodeServiceUnavailable, Msg: "kitchen is not accepting orders right now"},
	{Target: service.ErrPhoneInvalid, Code: response.CodeBadRequest, Msg: "phone number is invalid"},
	{Target: service.ErrPromoNotFound, Code: response.CodeBadRequest, Msg: "promo code not found"},
	{Target: service.ErrPromoInvalid, Code: response.CodeBadRequest, Msg: "promo code cannot be applied"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest},
}

var orderLookupErrorRules = []mappedHandlerError{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Msg: "order not found"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest},
}

var paymentErrorRules = []mappedHandlerError{
	{Target: service.ErrWebhookSignatureInvalid, Code: response.CodeUnauthorized, Msg: "signature invalid"},
	{Target: service.ErrAmountMismatch, Code: response.CodeBadRequest, Msg: "paid amount does not match order total"},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Msg: "order not found"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest},
	{Target: service.ErrDownstreamUnavailable, Code: response.CodeServiceUnavailable, Msg: "payment provider unavailable, please retry"},
}
