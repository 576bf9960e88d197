package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tokenmarket/internal/config"
	"tokenmarket/internal/infrastructure/lock"
	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"
	"tokenmarket/pkg/idgen"

	"gorm.io/gorm"
)

type PurchaseService struct {
	db              *gorm.DB
	locks           lock.Provider
	cfg             *config.Config
	courseRepo      *repository.CourseRepository
	tokenRepo       *repository.TokenRepository
	purchaseRepo    *repository.PurchaseRepository
	balanceRepo     *repository.BalanceRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewPurchaseService(db *gorm.DB, locks lock.Provider, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		db:              db,
		locks:           locks,
		cfg:             cfg,
		courseRepo:      repository.NewCourseRepository(db),
		tokenRepo:       repository.NewTokenRepository(db),
		purchaseRepo:    repository.NewPurchaseRepository(db),
		balanceRepo:     repository.NewBalanceRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type PurchaseRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	UserID    int64  `json:"user_id" binding:"required"`
	CourseID  int64  `json:"course_id" binding:"required"`
}

type PurchaseResponse struct {
	PurchaseNo    string  `json:"purchase_no"`
	TokensAwarded int64   `json:"tokens_awarded"`
	PriceUSD      float64 `json:"price_usd"`
	Message       string  `json:"message,omitempty"`
}

// ExecutePurchase 执行课程购买
//
// 【关键点】购买是账本最核心的发放路径，需要保证：
// 1. 幂等性：相同的 request_id 只会发放一次奖励
// 2. 原子性：购买记录、国库分配、买家入账、流水必须同时成功或同时失败
// 3. 并发安全：国库是课程级共享资源，按课程维度加锁
//
// 奖励标准 = max(下限, floor(总供应量 × 奖励比例))，实际发放被国库余量
// 截断（actual = min(标准, 国库余量)），国库耗尽时发放 0 并照常计收入。
func (s *PurchaseService) ExecutePurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	// 幂等校验
	existing, err := s.purchaseRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询购买记录失败: %w", err)
	}
	if existing != nil {
		return &PurchaseResponse{
			PurchaseNo:    existing.PurchaseNo,
			TokensAwarded: existing.TokensAwarded,
			PriceUSD:      existing.PriceUSD,
			Message:       "购买记录已存在",
		}, nil
	}

	course, err := s.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	courseLock := s.locks.NewLock(
		fmt.Sprintf("purchase:lock:course:%d", req.CourseID),
		req.RequestID,
		30*time.Second,
	)
	err = courseLock.Lock(ctx, lockRetryInterval(s.cfg), s.cfg.Business.LockMaxRetries)
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return nil, fmt.Errorf("课程账本繁忙: %w", repository.ErrTxConflict)
		}
		return nil, err
	}
	defer courseLock.Unlock(ctx)

	// 获取锁后再次检查幂等
	existing, err = s.purchaseRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询购买记录失败: %w", err)
	}
	if existing != nil {
		return &PurchaseResponse{
			PurchaseNo:    existing.PurchaseNo,
			TokensAwarded: existing.TokensAwarded,
			PriceUSD:      existing.PriceUSD,
			Message:       "购买记录已存在",
		}, nil
	}

	// 代币记录在课程创建事务中同步生成，查不到说明账本已经不一致
	token, err := s.tokenRepo.GetByCourseID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	// 奖励标准：总供应量的固定比例向下取整，不低于下限
	requested := int64(float64(token.TotalSupply) * s.cfg.Business.RewardRatio)
	if requested < s.cfg.Business.MinRewardTokens {
		requested = s.cfg.Business.MinRewardTokens
	}

	var (
		purchaseNo string
		awarded    int64
	)
	err = runWithConflictRetry(s.cfg.Business.TxMaxRetries, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			actual, err := s.tokenRepo.AllocateFromTreasury(ctx, tx, req.CourseID, requested, course.PriceUSD)
			if err != nil {
				return fmt.Errorf("国库分配失败: %w", err)
			}

			purchaseNo = idgen.GeneratePurchaseNo()
			purchase := &model.Purchase{
				PurchaseNo:    purchaseNo,
				RequestID:     req.RequestID,
				UserID:        req.UserID,
				CourseID:      req.CourseID,
				PriceUSD:      course.PriceUSD,
				TokensAwarded: actual,
				Status:        model.PurchaseStatusPaid,
			}
			if err := s.purchaseRepo.Create(ctx, tx, purchase); err != nil {
				return fmt.Errorf("创建购买记录失败: %w", err)
			}

			balance, err := s.balanceRepo.GetOrCreate(ctx, tx, req.UserID, req.CourseID)
			if err != nil {
				return fmt.Errorf("获取余额记录失败: %w", err)
			}

			if actual > 0 {
				if err := s.balanceRepo.Credit(ctx, tx, req.UserID, req.CourseID, actual); err != nil {
					return fmt.Errorf("奖励入账失败: %w", err)
				}
			}

			transaction := &model.TokenTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        req.UserID,
				CourseID:      req.CourseID,
				RefNo:         purchaseNo,
				Amount:        actual,
				Type:          model.TransactionTypeReward,
				AmountBefore:  balance.Amount,
				AmountAfter:   balance.Amount + actual,
				Remark:        fmt.Sprintf("购买奖励-%s", course.Title),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}

			msgPayload := map[string]interface{}{
				"purchase_no":    purchaseNo,
				"request_id":     req.RequestID,
				"user_id":        req.UserID,
				"course_id":      req.CourseID,
				"price_usd":      course.PriceUSD,
				"tokens_awarded": actual,
				"status":         model.PurchaseStatusPaid,
				"paid_at":        time.Now().Format(time.RFC3339),
			}
			payloadBytes, _ := json.Marshal(msgPayload)

			outboxMsg := &model.OutboxMessage{
				MessageKey: purchaseNo,
				Topic:      s.cfg.Kafka.Topic.PurchaseResult,
				Payload:    string(payloadBytes),
				Status:     model.OutboxStatusPending,
			}
			if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}

			awarded = actual
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("课程购买成功: purchaseNo=%s, userID=%d, courseID=%d, awarded=%d",
		purchaseNo, req.UserID, req.CourseID, awarded)

	return &PurchaseResponse{
		PurchaseNo:    purchaseNo,
		TokensAwarded: awarded,
		PriceUSD:      course.PriceUSD,
		Message:       "购买成功",
	}, nil
}

// GetPurchase 按购买单号查询
func (s *PurchaseService) GetPurchase(ctx context.Context, purchaseNo string) (*model.Purchase, error) {
	return s.purchaseRepo.GetByPurchaseNo(ctx, purchaseNo)
}

// ListUserPurchases 查询用户购买记录
func (s *PurchaseService) ListUserPurchases(ctx context.Context, userID int64, page, pageSize int) ([]*model.Purchase, int64, error) {
	return s.purchaseRepo.ListByUserID(ctx, userID, page, pageSize)
}
