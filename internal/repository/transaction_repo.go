package repository

import (
	"context"
	"errors"

	"tokenmarket/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.TokenTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByRefNo(ctx context.Context, refNo string) ([]*model.TokenTransaction, error) {
	var transactions []*model.TokenTransaction
	err := r.db.WithContext(ctx).
		Where("ref_no = ?", refNo).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.TokenTransaction, int64, error) {
	var transactions []*model.TokenTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TokenTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *TransactionRepository) GetByUserIDAndRefNo(ctx context.Context, userID int64, refNo string) (*model.TokenTransaction, error) {
	var trans model.TokenTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ref_no = ?", userID, refNo).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}
