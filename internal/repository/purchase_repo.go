package repository

import (
	"context"
	"errors"

	"tokenmarket/internal/model"

	"gorm.io/gorm"
)

var ErrPurchaseNotFound = errors.New("购买记录不存在")

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Create(ctx context.Context, tx *gorm.DB, purchase *model.Purchase) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(purchase).Error
}

func (r *PurchaseRepository) GetByPurchaseNo(ctx context.Context, purchaseNo string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).Where("purchase_no = ?", purchaseNo).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

// GetByRequestID 幂等查询，未找到时返回 (nil, nil)
func (r *PurchaseRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Purchase, int64, error) {
	var purchases []*model.Purchase
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Purchase{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&purchases).Error

	return purchases, total, err
}
