package model

import (
	"time"
)

const (
	UserRoleCreator = "creator"
	UserRoleBuyer   = "buyer"
	UserRoleBoth    = "both"
)

// User 用户表
// 简单的创作者/购买者注册表，不承载鉴权逻辑
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(64);not null" json:"name"`
	Email      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Role       string    `gorm:"type:varchar(16);not null;default:both" json:"role"`
	ETHAddress string    `gorm:"type:varchar(64)" json:"eth_address"` // 用户以太坊地址（可选）
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
