package repository

import (
	"context"
	"errors"

	"github.com/mealdash-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferrerRepository 推荐人数据访问接口
type ReferrerRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Referrer, error)
	Create(ctx context.Context, referrer *models.Referrer) error
	List(ctx context.Context, page, pageSize int) ([]models.Referrer, int64, error)
	AddCommission(ctx context.Context, id uint, amount decimal.Decimal) error
	WithTx(tx *gorm.DB) ReferrerRepository
}

// GormReferrerRepository GORM 实现
type GormReferrerRepository struct {
	db *gorm.DB
}

// NewReferrerRepository 创建推荐人仓库
func NewReferrerRepository(db *gorm.DB) *GormReferrerRepository {
	return &GormReferrerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferrerRepository) WithTx(tx *gorm.DB) ReferrerRepository {
	if tx == nil {
		return r
	}
	return &GormReferrerRepository{db: tx}
}

// GetByID 根据 ID 获取推荐人
func (r *GormReferrerRepository) GetByID(ctx context.Context, id uint) (*models.Referrer, error) {
	var referrer models.Referrer
	if err := r.db.WithContext(ctx).First(&referrer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referrer, nil
}

// Create 创建推荐人
func (r *GormReferrerRepository) Create(ctx context.Context, referrer *models.Referrer) error {
	return r.db.WithContext(ctx).Create(referrer).Error
}

// List 推荐人列表
func (r *GormReferrerRepository) List(ctx context.Context, page, pageSize int) ([]models.Referrer, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Referrer{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var referrers []models.Referrer
	if err := applyPagination(query.Order("id ASC"), page, pageSize).Find(&referrers).Error; err != nil {
		return nil, 0, err
	}
	return referrers, total, nil
}

// AddCommission 累加推荐人佣金
func (r *GormReferrerRepository) AddCommission(ctx context.Context, id uint, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Referrer{}).
		Where("id = ?", id).
		UpdateColumn("total_commission", gorm.Expr("total_commission + ?", amount.Round(2).StringFixed(2))).Error
}
