package models

import "time"

// DeliveryAssignment 配送指派记录
type DeliveryAssignment struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	OrderID     uint       `gorm:"index;not null" json:"order_id"`                // 订单ID
	CourierID   uint       `gorm:"index;not null" json:"courier_id"`              // 骑手ID
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"` // 指派状态
	Score       float64    `gorm:"not null;default:0" json:"score"`               // 调度得分（越低越优）
	DistanceKM  *float64   `json:"distance_km,omitempty"`                         // 骑手距门店距离
	AssignedBy  string     `gorm:"type:varchar(64)" json:"assigned_by"`           // 指派来源（auto/admin:<id>/cli）
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`                         // 接单时间
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`                        // 取餐时间
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`                        // 送达时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`                                    // 更新时间

	Courier *Courier `gorm:"foreignKey:CourierID" json:"courier,omitempty"`
}

// TableName 指定表名
func (DeliveryAssignment) TableName() string {
	return "delivery_assignments"
}
