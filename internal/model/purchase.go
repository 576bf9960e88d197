package model

import (
	"time"
)

const (
	PurchaseStatusPaid     = "PAID"
	PurchaseStatusRefunded = "REFUNDED"
)

// Purchase 课程购买记录表
// 只追加，不修改，不删除 —— 审计凭据，创建后不可变
type Purchase struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PurchaseNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"purchase_no"`
	RequestID     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，客户端生成
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	CourseID      int64     `gorm:"index;not null" json:"course_id"`
	PriceUSD      float64   `gorm:"not null" json:"price_usd"`
	TokensAwarded int64     `gorm:"not null" json:"tokens_awarded"` // 实际发放的代币数（国库不足时可能小于标准奖励，甚至为 0）
	Status        string    `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Purchase) TableName() string {
	return "purchase"
}
