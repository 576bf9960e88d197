package repository

import (
	"context"
	"errors"

	"tokenmarket/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.TradeOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.TradeOrder, error) {
	var order model.TradeOrder
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Fill 扣减订单剩余数量，归零后状态置为 FILLED（记录保留）
// WHERE 条件带 status = OPEN 与 amount >= filled 约束，超量成交不可能命中
func (r *OrderRepository) Fill(ctx context.Context, tx *gorm.DB, orderNo string, filled int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.TradeOrder{}).
		Where("order_no = ? AND status = ? AND amount >= ?", orderNo, model.OrderStatusOpen, filled).
		Updates(map[string]interface{}{
			"amount":  gorm.Expr("amount - ?", filled),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTxConflict
	}

	return tx.WithContext(ctx).
		Model(&model.TradeOrder{}).
		Where("order_no = ? AND status = ? AND amount = 0", orderNo, model.OrderStatusOpen).
		Update("status", model.OrderStatusFilled).Error
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.TradeOrder{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Updates(map[string]interface{}{
			"status":  toStatus,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// List 按课程/方向过滤挂单，结果数量封顶由调用方传入（响应体大小约束）
func (r *OrderRepository) List(ctx context.Context, courseID int64, side string, limit int) ([]*model.TradeOrder, error) {
	query := r.db.WithContext(ctx).Model(&model.TradeOrder{})

	if courseID > 0 {
		query = query.Where("course_id = ?", courseID)
	}
	if side != "" {
		query = query.Where("side = ?", side)
	}

	var orders []*model.TradeOrder
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
