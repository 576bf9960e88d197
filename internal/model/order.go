package model

import (
	"time"
)

const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"
)

const (
	OrderStatusOpen      = "OPEN"
	OrderStatusFilled    = "FILLED"
	OrderStatusCancelled = "CANCELLED"
)

var ValidStatusTransitions = map[string][]string{
	OrderStatusOpen: {OrderStatusFilled, OrderStatusCancelled},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// TradeOrder 代币挂单表
// amount 为剩余未成交数量，撮合时递减；归零后状态置为 FILLED，记录保留不删除。
// 卖单在创建的同一事务内预留卖方余额；买单以外部法币结算，不做余额前置校验。
type TradeOrder struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	CourseID  int64     `gorm:"index;not null" json:"course_id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Side      string    `gorm:"type:varchar(8);not null" json:"side"` // buy / sell
	PriceUSD  float64   `gorm:"not null" json:"price_usd"`            // 限价（美元），必须大于 0
	Amount    int64     `gorm:"not null" json:"amount"`               // 剩余未成交数量
	Status    string    `gorm:"type:varchar(20);index;not null" json:"status"`
	Version   int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TradeOrder) TableName() string {
	return "trade_order"
}
