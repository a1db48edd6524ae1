package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mealdash-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AttributionRepository 顾客归因数据访问接口
type AttributionRepository interface {
	GetByPhone(ctx context.Context, phone string) (*models.CustomerAttribution, error)
	Create(ctx context.Context, attribution *models.CustomerAttribution) error
	IncrementTotals(ctx context.Context, id uint, orderTotal decimal.Decimal) error
	WithTx(tx *gorm.DB) AttributionRepository
}

// GormAttributionRepository GORM 实现
type GormAttributionRepository struct {
	db *gorm.DB
}

// NewAttributionRepository 创建顾客归因仓库
func NewAttributionRepository(db *gorm.DB) *GormAttributionRepository {
	return &GormAttributionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAttributionRepository) WithTx(tx *gorm.DB) AttributionRepository {
	if tx == nil {
		return r
	}
	return &GormAttributionRepository{db: tx}
}

// GetByPhone 按手机号查询归因绑定
func (r *GormAttributionRepository) GetByPhone(ctx context.Context, phone string) (*models.CustomerAttribution, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	var attribution models.CustomerAttribution
	if err := r.db.WithContext(ctx).Where("customer_phone = ?", phone).First(&attribution).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attribution, nil
}

// Create 创建归因绑定；手机号唯一，重复写入返回唯一约束错误
func (r *GormAttributionRepository) Create(ctx context.Context, attribution *models.CustomerAttribution) error {
	return r.db.WithContext(ctx).Create(attribution).Error
}

// IncrementTotals 累加订单数与消费额
func (r *GormAttributionRepository) IncrementTotals(ctx context.Context, id uint, orderTotal decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.CustomerAttribution{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_orders": gorm.Expr("total_orders + ?", 1),
			"total_spent":  gorm.Expr("total_spent + ?", orderTotal.Round(2).StringFixed(2)),
		}).Error
}
