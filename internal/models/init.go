package models

import (
	"strings"

	"github.com/mealdash-next/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"
)

// DefaultMaxActiveOrders 营业状态初始化时的活跃订单上限
const DefaultMaxActiveOrders = 10

// InitDefaultAdmin 初始化默认管理员账号
func InitDefaultAdmin(username, password string) error {
	var count int64
	if err := DB.Model(&Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := Admin{
		Username:     username,
		PasswordHash: string(hash),
		IsSuper:      true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	if password == "admin123" {
		logger.Warnw("default_admin_created_with_default_password", "username", username)
	} else {
		logger.Warnw("default_admin_created", "username", username, "password_hidden", true)
	}
	return nil
}

// EnsureOperatingState 保证营业状态单例行存在
func EnsureOperatingState() error {
	state := OperatingState{
		ID:               OperatingStateID,
		IsOpen:           true,
		AutoCloseEnabled: true,
		MaxActiveOrders:  DefaultMaxActiveOrders,
	}
	return DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&state).Error
}
