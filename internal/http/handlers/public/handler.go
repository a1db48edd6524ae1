package public

import "github.com/mealdash-next/internal/provider"

// Handler 顾客侧公开接口处理器入口
// 说明：下单、查单、支付核验与支付网关回调。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
