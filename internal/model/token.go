package model

import (
	"time"
)

// CourseToken 课程代币表
// 记录每门课程代币的供应与国库状态，是账本的核心数据
//
// 【核心不变量】circulating_supply + treasury_token_balance == total_supply
// 任何时刻都必须成立。只有购买奖励发放和交易撮合会修改该表，记录永不删除。
type CourseToken struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID             int64     `gorm:"uniqueIndex;not null" json:"course_id"`
	TokenSymbol          string    `gorm:"type:varchar(8);not null" json:"token_symbol"`
	TotalSupply          int64     `gorm:"not null" json:"total_supply"`                      // 固定总量（创建时确定，>0）
	CirculatingSupply    int64     `gorm:"not null;default:0" json:"circulating_supply"`     // 已流通数量（用户持有的可用+预留之和）
	TreasuryTokenBalance int64     `gorm:"not null;default:0" json:"treasury_token_balance"` // 国库未分配数量
	TreasuryRevenueUSD   float64   `gorm:"not null;default:0" json:"treasury_revenue_usd"`   // 国库累计收入（美元）
	TreasuryETHAddress   string    `gorm:"type:varchar(64);not null" json:"treasury_eth_address"`
	Version              int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CourseToken) TableName() string {
	return "course_token"
}
