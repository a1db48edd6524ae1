package models

import "time"

// OrderItem 订单项
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                    // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`                          // 订单ID
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`                  // 菜品名称快照
	UnitPrice Money     `gorm:"type:decimal(20,2);not null" json:"unit_price"`           // 单价
	Quantity  int       `gorm:"not null" json:"quantity"`                                // 数量
	LineTotal Money     `gorm:"type:decimal(20,2);not null;default:0" json:"line_total"` // 小计
	CreatedAt time.Time `json:"created_at"`                                              // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
