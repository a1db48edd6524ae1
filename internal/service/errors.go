package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 输入不合法
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")
	// ErrNoAvailableCourier 没有可指派的骑手
	ErrNoAvailableCourier = errors.New("no available courier")
	// ErrAlreadyProcessed 事件已处理（幂等命中）
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrDownstreamUnavailable 下游服务不可用
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
)

var (
	ErrOrderNotFound           = fmt.Errorf("%w: order", ErrNotFound)
	ErrPromoNotFound           = fmt.Errorf("%w: promo code", ErrNotFound)
	ErrCourierNotFound         = fmt.Errorf("%w: courier", ErrNotFound)
	ErrAssignmentNotFound      = fmt.Errorf("%w: delivery assignment", ErrNotFound)
	ErrPrintJobNotFound        = fmt.Errorf("%w: print job", ErrNotFound)
	ErrAttributionNotFound     = fmt.Errorf("%w: customer attribution", ErrNotFound)
	ErrOrderStatusInvalid      = fmt.Errorf("%w: order status transition not allowed", ErrValidation)
	ErrPromoInvalid            = fmt.Errorf("%w: promo code not applicable", ErrValidation)
	ErrPhoneInvalid            = fmt.Errorf("%w: phone number", ErrValidation)
	ErrAmountMismatch          = fmt.Errorf("%w: paid amount does not match order total", ErrValidation)
	ErrSettingInvalid          = fmt.Errorf("%w: setting", ErrValidation)
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrTokenInvalid            = errors.New("token invalid")
)

// NoAvailableCourierError 指派失败时携带已评估的候选人数
type NoAvailableCourierError struct {
	Evaluated int
}

func (e *NoAvailableCourierError) Error() string {
	return fmt.Sprintf("no available courier (evaluated %d candidates)", e.Evaluated)
}

// Is 使 errors.Is(err, ErrNoAvailableCourier) 成立
func (e *NoAvailableCourierError) Is(target error) bool {
	return target == ErrNoAvailableCourier
}
