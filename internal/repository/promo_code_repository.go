package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
)

// PromoCodeRepository 优惠码数据访问接口
type PromoCodeRepository interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetByID(ctx context.Context, id uint) (*models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) error
	List(ctx context.Context, page, pageSize int) ([]models.PromoCode, int64, error)
	IncrementUsage(ctx context.Context, id uint) error
	WithTx(tx *gorm.DB) PromoCodeRepository
}

// GormPromoCodeRepository GORM 实现
type GormPromoCodeRepository struct {
	db *gorm.DB
}

// NewPromoCodeRepository 创建优惠码仓库
func NewPromoCodeRepository(db *gorm.DB) *GormPromoCodeRepository {
	return &GormPromoCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPromoCodeRepository) WithTx(tx *gorm.DB) PromoCodeRepository {
	if tx == nil {
		return r
	}
	return &GormPromoCodeRepository{db: tx}
}

// NormalizeCode 统一优惠码大小写与空白
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetByCode 按优惠码查询（大小写不敏感）
func (r *GormPromoCodeRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, nil
	}
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).Where("UPPER(code) = ?", normalized).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &promo, nil
}

// GetByID 根据 ID 获取优惠码
func (r *GormPromoCodeRepository) GetByID(ctx context.Context, id uint) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).First(&promo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &promo, nil
}

// Create 创建优惠码
func (r *GormPromoCodeRepository) Create(ctx context.Context, promo *models.PromoCode) error {
	promo.Code = NormalizeCode(promo.Code)
	return r.db.WithContext(ctx).Create(promo).Error
}

// List 优惠码列表
func (r *GormPromoCodeRepository) List(ctx context.Context, page, pageSize int) ([]models.PromoCode, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PromoCode{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var promos []models.PromoCode
	if err := applyPagination(query.Order("id DESC"), page, pageSize).Find(&promos).Error; err != nil {
		return nil, 0, err
	}
	return promos, total, nil
}

// IncrementUsage 使用次数原子加一
func (r *GormPromoCodeRepository) IncrementUsage(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.PromoCode{}).
		Where("id = ?", id).
		UpdateColumn("used_count", gorm.Expr("used_count + ?", 1)).Error
}
