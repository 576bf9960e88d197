package service

import (
	"context"

	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"

	"gorm.io/gorm"
)

type BalanceService struct {
	balanceRepo *repository.BalanceRepository
	db          *gorm.DB
}

func NewBalanceService(db *gorm.DB) *BalanceService {
	return &BalanceService{
		balanceRepo: repository.NewBalanceRepository(db),
		db:          db,
	}
}

// GetBalance 查询用户在某课程下的余额，未持仓时返回零值快照
func (s *BalanceService) GetBalance(ctx context.Context, userID, courseID int64) (*model.Balance, error) {
	return s.balanceRepo.Get(ctx, userID, courseID)
}

// ListUserBalances 查询用户全部课程的持仓
func (s *BalanceService) ListUserBalances(ctx context.Context, userID int64) ([]*model.Balance, error) {
	return s.balanceRepo.ListByUserID(ctx, userID)
}
