package model

import (
	"time"
)

// ============================================================================
// 代币流水类型常量
// ============================================================================

const (
	TransactionTypeReward   = "REWARD"    // 购买奖励发放（国库 -> 买家可用余额）
	TransactionTypeReserve  = "RESERVE"   // 挂卖单预留（可用 -> 预留）
	TransactionTypeRelease  = "RELEASE"   // 撤单释放（预留 -> 可用）
	TransactionTypeTradeOut = "TRADE_OUT" // 成交卖出（卖方预留余额扣减）
	TransactionTypeTradeIn  = "TRADE_IN"  // 成交买入（买方可用余额入账）
)

// TokenTransaction 代币流水表
// 记录每一笔代币变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联业务单号（购买单/挂单/成交单）—— 便于对账
// 3. 记录变动前后可用余额 —— 便于校验余额一致性
type TokenTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	CourseID      int64     `gorm:"index;not null" json:"course_id"`
	RefNo         string    `gorm:"type:varchar(64);index;not null" json:"ref_no"` // 关联业务单号
	Amount        int64     `gorm:"not null" json:"amount"`                        // 代币数量（正数入账，负数出账）
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	AmountBefore  int64     `gorm:"not null" json:"amount_before"` // 变动前可用余额
	AmountAfter   int64     `gorm:"not null" json:"amount_after"`  // 变动后可用余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TokenTransaction) TableName() string {
	return "token_transaction"
}
