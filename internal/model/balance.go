package model

import (
	"time"
)

// Balance 用户代币余额表
// 每个 (user_id, course_id) 只有一条记录（唯一索引保证），首次入账时惰性创建
//
// amount 为可用余额，reserved 为挂卖单锁定的预留余额，二者都不允许为负。
// 用户对某课程的总持仓 = amount + reserved。
type Balance struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:uk_user_course;not null" json:"user_id"`
	CourseID  int64     `gorm:"uniqueIndex:uk_user_course;not null" json:"course_id"`
	Amount    int64     `gorm:"not null;default:0" json:"amount"`   // 可用余额
	Reserved  int64     `gorm:"not null;default:0" json:"reserved"` // 预留余额（锁定在未成交卖单上）
	Version   int       `gorm:"not null;default:0" json:"version"`  // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string {
	return "balance"
}
