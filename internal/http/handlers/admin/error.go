package admin

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

func respondWithMappedError(c *gin.Context, err error, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, adminErrorRules, response.CodeInternal, fallbackMsg)
}

// adminErrorRules 后台统一错误映射，顺序即优先级
var adminErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Msg: "invalid username or password"},
	{Target: service.ErrNoAvailableCourier, Code: response.CodeConflict, Msg: "no available courier"},
	{Target: service.ErrOrderStatusInvalid, Code: response.CodeConflict, Msg: "order status transition not allowed"},
	{Target: service.ErrAlreadyProcessed, Code: response.CodeConflict, Msg: "already processed"},
	{Target: service.ErrSettingInvalid, Code: response.CodeBadRequest, Msg: "setting invalid"},
	{Target: service.ErrNotFound, Code: response.CodeNotFound},
	{Target: service.ErrValidation, Code: response.CodeBadRequest},
	{Target: service.ErrDownstreamUnavailable, Code: response.CodeServiceUnavailable, Msg: "downstream service unavailable"},
}
