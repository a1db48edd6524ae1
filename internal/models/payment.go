package models

import (
	"time"
)

// Payment 支付确认事件流水（verify 与 webhook 两条入口均落一条）
type Payment struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                                // 主键
	OrderID     uint      `gorm:"index;not null" json:"order_id"`                                                      // 订单ID
	ProviderRef string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_payment_event_unique" json:"provider_ref"` // 第三方流水号
	Source      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_payment_event_unique" json:"source"`        // 来源（verify/webhook）
	Status      string    `gorm:"type:varchar(20);not null;index;uniqueIndex:idx_payment_event_unique" json:"status"`  // 网关返回状态
	Amount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                 // 网关返回金额
	Payload     JSON      `gorm:"type:json" json:"payload"`                                                            // 原始数据
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                                             // 创建时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
