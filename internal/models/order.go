package models

import (
	"time"
)

// Order 订单表
type Order struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                                   // 主键
	OrderNo          string     `gorm:"uniqueIndex;not null" json:"order_no"`                                   // 订单编号
	Status           string     `gorm:"index;not null" json:"status"`                                           // 订单状态
	PaymentStatus    string     `gorm:"type:varchar(20);index;not null;default:'unpaid'" json:"payment_status"` // 支付状态
	PaymentMethod    string     `gorm:"type:varchar(20);not null;default:'online'" json:"payment_method"`       // 支付方式（online/cod）
	PaymentReference string     `gorm:"type:varchar(128);index" json:"payment_reference,omitempty"`             // 支付网关流水号
	Subtotal         Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`                  // 商品小计
	DeliveryFee      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"delivery_fee"`              // 配送费
	Tax              Money      `gorm:"type:decimal(20,2);not null;default:0" json:"tax"`                       // 税费
	Discount         Money      `gorm:"type:decimal(20,2);not null;default:0" json:"discount"`                  // 优惠金额
	Total            Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total"`                     // 实付金额
	PromoCode        *string    `gorm:"type:varchar(64);index" json:"promo_code,omitempty"`                     // 使用的优惠码
	CustomerName     string     `gorm:"type:varchar(120)" json:"customer_name"`                                 // 顾客姓名
	CustomerPhone    string     `gorm:"type:varchar(32);index;not null" json:"customer_phone"`                  // 顾客手机号（E.164）
	DeliveryAddress  string     `gorm:"type:varchar(500)" json:"delivery_address"`                              // 配送地址
	DeliveryLat      *float64   `json:"delivery_lat,omitempty"`                                                 // 配送纬度
	DeliveryLng      *float64   `json:"delivery_lng,omitempty"`                                                 // 配送经度
	Note             string     `gorm:"type:varchar(500)" json:"note,omitempty"`                                // 备注
	ScheduledFor     *time.Time `gorm:"index" json:"scheduled_for,omitempty"`                                   // 预约开始处理时间
	CourierID        *uint      `gorm:"index" json:"courier_id,omitempty"`                                      // 指派骑手ID
	ConfirmedAt      *time.Time `gorm:"index" json:"confirmed_at,omitempty"`                                    // 确认时间
	ReadyAt          *time.Time `json:"ready_at,omitempty"`                                                     // 出餐时间
	CompletedAt      *time.Time `json:"completed_at,omitempty"`                                                 // 完成时间
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`                                                 // 取消时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                                // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                                // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsCOD 是否货到付款
func (o *Order) IsCOD() bool {
	return o != nil && o.PaymentMethod == "cod"
}

// PromoCodeValue 返回优惠码（无则为空串）
func (o *Order) PromoCodeValue() string {
	if o == nil || o.PromoCode == nil {
		return ""
	}
	return *o.PromoCode
}
