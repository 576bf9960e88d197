package repository

import (
	"context"
	"errors"
	"fmt"

	"tokenmarket/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBalanceNotEnough = errors.New("代币余额不足")
	// ErrTxConflict 条件更新未命中（并发竞争导致），调用方有限次重试后向上抛出
	ErrTxConflict = errors.New("并发冲突，请稍后重试")
	// ErrInvariantViolation 账本不变量被破坏（余额出现负数等），属于程序缺陷，
	// 绝不静默截断，必须带上下文上抛以便排查
	ErrInvariantViolation = errors.New("账本数据异常")
)

// BalanceRepository 用户代币余额存储
// 所有变更走条件 UPDATE（WHERE 带余额约束 + RowsAffected 判定），
// 保证读-改-写不会与并发事务交错
type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get 查询余额，记录不存在时返回零值快照（不落库）
func (r *BalanceRepository) Get(ctx context.Context, userID, courseID int64) (*model.Balance, error) {
	var balance model.Balance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.Balance{UserID: userID, CourseID: courseID}, nil
		}
		return nil, err
	}
	return &balance, nil
}

// GetOrCreate 惰性创建余额记录（首次入账/预留时）
// 依赖 (user_id, course_id) 唯一索引 + OnConflict DoNothing 保证并发下只产生一条
func (r *BalanceRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID, courseID int64) (*model.Balance, error) {
	if tx == nil {
		tx = r.db
	}

	newBalance := &model.Balance{
		UserID:   userID,
		CourseID: courseID,
	}

	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(newBalance).Error
	if err != nil {
		return nil, err
	}

	var balance model.Balance
	err = tx.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// Credit 可用余额入账（记录不存在则先创建）
func (r *BalanceRepository) Credit(ctx context.Context, tx *gorm.DB, userID, courseID, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	if _, err := r.GetOrCreate(ctx, tx, userID, courseID); err != nil {
		return err
	}

	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Updates(map[string]interface{}{
			"amount":  gorm.Expr("amount + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTxConflict
	}
	return nil
}

// Reserve 预留余额（挂卖单锁定）：可用 -> 预留
// WHERE 条件带 amount >= ? 约束，可用余额不足时更新不命中
func (r *BalanceRepository) Reserve(ctx context.Context, tx *gorm.DB, userID, courseID, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ? AND course_id = ? AND amount >= ?", userID, courseID, amount).
		Updates(map[string]interface{}{
			"amount":   gorm.Expr("amount - ?", amount),
			"reserved": gorm.Expr("reserved + ?", amount),
			"version":  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 未命中：区分余额不足与并发竞争
		balance, err := r.Get(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if balance.Amount < amount {
			return ErrBalanceNotEnough
		}
		return ErrTxConflict
	}

	return nil
}

// ReleaseReserved 扣减预留余额（成交后代币离开卖方）
// 预留余额不足说明账本已经不一致，直接作为不变量破坏上抛
func (r *BalanceRepository) ReleaseReserved(ctx context.Context, tx *gorm.DB, userID, courseID, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ? AND course_id = ? AND reserved >= ?", userID, courseID, amount).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - ?", amount),
			"version":  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("释放预留余额失败 user_id=%d course_id=%d amount=%d: %w",
			userID, courseID, amount, ErrInvariantViolation)
	}
	return nil
}

// Unreserve 撤单回退：预留 -> 可用
func (r *BalanceRepository) Unreserve(ctx context.Context, tx *gorm.DB, userID, courseID, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ? AND course_id = ? AND reserved >= ?", userID, courseID, amount).
		Updates(map[string]interface{}{
			"amount":   gorm.Expr("amount + ?", amount),
			"reserved": gorm.Expr("reserved - ?", amount),
			"version":  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("撤单回退预留余额失败 user_id=%d course_id=%d amount=%d: %w",
			userID, courseID, amount, ErrInvariantViolation)
	}
	return nil
}

// ListByUserID 查询用户在所有课程下的余额
func (r *BalanceRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Balance, error) {
	var balances []*model.Balance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("course_id ASC").
		Find(&balances).Error
	return balances, err
}

// SumByCourseID 统计某课程全部用户持仓（可用+预留），对账任务使用
func (r *BalanceRepository) SumByCourseID(ctx context.Context, courseID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Balance{}).
		Select("COALESCE(SUM(amount + reserved), 0)").
		Where("course_id = ?", courseID).
		Scan(&total).Error
	return total, err
}
