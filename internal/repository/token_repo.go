package repository

import (
	"context"
	"errors"

	"tokenmarket/internal/model"

	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("课程代币记录不存在")

// TokenRepository 课程代币供应存储
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, tx *gorm.DB, token *model.CourseToken) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(token).Error
}

func (r *TokenRepository) GetByCourseID(ctx context.Context, courseID int64) (*model.CourseToken, error) {
	var token model.CourseToken
	err := r.db.WithContext(ctx).Where("course_id = ?", courseID).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// AllocateFromTreasury 从国库分配代币并记入收入，返回实际分配数量
//
// 实际分配 = min(requested, 国库余量)，国库耗尽时返回 0（降级分配，不算错误）。
// 条件更新带 treasury_token_balance >= ? 约束，保证
// circulating_supply + treasury_token_balance == total_supply 永远不会被超发破坏。
func (r *TokenRepository) AllocateFromTreasury(ctx context.Context, tx *gorm.DB, courseID, requested int64, revenueUSD float64) (int64, error) {
	if tx == nil {
		tx = r.db
	}

	var token model.CourseToken
	err := tx.WithContext(ctx).Where("course_id = ?", courseID).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}

	actual := requested
	if token.TreasuryTokenBalance < actual {
		actual = token.TreasuryTokenBalance
	}
	if actual < 0 {
		actual = 0
	}

	if actual == 0 {
		// 国库已耗尽，仍需累计本次收入
		return 0, r.addRevenue(ctx, tx, courseID, revenueUSD)
	}

	result := tx.WithContext(ctx).
		Model(&model.CourseToken{}).
		Where("course_id = ? AND treasury_token_balance >= ?", courseID, actual).
		Updates(map[string]interface{}{
			"circulating_supply":     gorm.Expr("circulating_supply + ?", actual),
			"treasury_token_balance": gorm.Expr("treasury_token_balance - ?", actual),
			"treasury_revenue_usd":   gorm.Expr("treasury_revenue_usd + ?", revenueUSD),
			"version":                gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// 读取与更新之间国库被并发扣减，交给上层重试
		return 0, ErrTxConflict
	}

	return actual, nil
}

// AddRevenue 累计国库收入（二级市场手续费），不改变供应量
func (r *TokenRepository) AddRevenue(ctx context.Context, tx *gorm.DB, courseID int64, revenueUSD float64) error {
	if tx == nil {
		tx = r.db
	}
	return r.addRevenue(ctx, tx, courseID, revenueUSD)
}

func (r *TokenRepository) addRevenue(ctx context.Context, tx *gorm.DB, courseID int64, revenueUSD float64) error {
	result := tx.WithContext(ctx).
		Model(&model.CourseToken{}).
		Where("course_id = ?", courseID).
		Updates(map[string]interface{}{
			"treasury_revenue_usd": gorm.Expr("treasury_revenue_usd + ?", revenueUSD),
			"version":              gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ListAll 全量代币记录，对账任务使用
func (r *TokenRepository) ListAll(ctx context.Context) ([]*model.CourseToken, error) {
	var tokens []*model.CourseToken
	err := r.db.WithContext(ctx).Order("course_id ASC").Find(&tokens).Error
	return tokens, err
}
