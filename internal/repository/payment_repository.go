package repository

import (
	"context"

	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付事件流水数据访问接口
type PaymentRepository interface {
	Record(ctx context.Context, payment *models.Payment) (bool, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.Payment, error)
	WithTx(tx *gorm.DB) PaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付流水仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Record 记录一次支付事件；同一流水号、来源与状态只落一条，返回是否为首次写入
func (r *GormPaymentRepository) Record(ctx context.Context, payment *models.Payment) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(payment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListByOrder 订单的支付事件
func (r *GormPaymentRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}
