package repository

import (
	"context"
	"errors"

	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"

	"gorm.io/gorm"
)

// AssignmentRepository 配送指派数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.DeliveryAssignment) error
	GetByID(ctx context.Context, id uint) (*models.DeliveryAssignment, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.DeliveryAssignment, error)
	ListOpenByOrder(ctx context.Context, orderID uint) ([]models.DeliveryAssignment, error)
	TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (int64, error)
	WithTx(tx *gorm.DB) AssignmentRepository
}

// GormAssignmentRepository GORM 实现
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建配送指派仓库
func NewAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAssignmentRepository) WithTx(tx *gorm.DB) AssignmentRepository {
	if tx == nil {
		return r
	}
	return &GormAssignmentRepository{db: tx}
}

// Create 创建指派记录
func (r *GormAssignmentRepository) Create(ctx context.Context, assignment *models.DeliveryAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// GetByID 根据 ID 获取指派记录
func (r *GormAssignmentRepository) GetByID(ctx context.Context, id uint) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	if err := r.db.WithContext(ctx).Preload("Courier").First(&assignment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// ListByOrder 订单的指派历史
func (r *GormAssignmentRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.DeliveryAssignment, error) {
	var assignments []models.DeliveryAssignment
	err := r.db.WithContext(ctx).Preload("Courier").
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

// ListOpenByOrder 订单上尚未结束的指派
func (r *GormAssignmentRepository) ListOpenByOrder(ctx context.Context, orderID uint) ([]models.DeliveryAssignment, error) {
	var assignments []models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, constants.OpenAssignmentStatuses).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

// TransitionStatus 以当前状态为条件推进指派状态
func (r *GormAssignmentRepository) TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (int64, error) {
	values := map[string]interface{}{"status": to}
	for key, value := range updates {
		values[key] = value
	}
	result := r.db.WithContext(ctx).Model(&models.DeliveryAssignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return result.RowsAffected, result.Error
}
