package model

import (
	"time"
)

// Course 课程表
// 每门课程在创建时绑定一份固定总量的课程代币（见 CourseToken）
type Course struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatorID          int64     `gorm:"index;not null" json:"creator_id"`
	Title              string    `gorm:"type:varchar(128);not null" json:"title"`
	Description        string    `gorm:"type:varchar(1024)" json:"description"`
	PriceUSD           float64   `gorm:"not null" json:"price_usd"`
	Category           string    `gorm:"type:varchar(64)" json:"category"`
	CoverImageURL      string    `gorm:"type:varchar(256)" json:"cover_image_url"`
	TokenSymbol        string    `gorm:"type:varchar(8);not null" json:"token_symbol"`   // 2-8 位代币符号
	TokenSupply        int64     `gorm:"not null" json:"token_supply"`                   // 固定总量，创建后不可变
	TreasuryETHAddress string    `gorm:"type:varchar(64);not null" json:"treasury_eth_address"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Course) TableName() string {
	return "course"
}
