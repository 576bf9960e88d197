package service

import (
	"context"
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

type OrderService struct {
	db              *gorm.DB
	locks           lock.Provider
	cfg             *config.Config
	courseRepo      *repository.CourseRepository
	orderRepo       *repository.OrderRepository
	balanceRepo     *repository.BalanceRepository
	transactionRepo *repository.TransactionRepository
}

func NewOrderService(db *gorm.DB, locks lock.Provider, cfg *config.Config) *OrderService {
	return &OrderService{
		db:              db,
		locks:           locks,
		cfg:             cfg,
		courseRepo:      repository.NewCourseRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		balanceRepo:     repository.NewBalanceRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type PlaceOrderRequest struct {
	UserID   int64   `json:"user_id" binding:"required"`
	CourseID int64   `json:"course_id" binding:"required"`
	Side     string  `json:"side" binding:"required,oneof=buy sell"`
	PriceUSD float64 `json:"price_usd" binding:"required,gt=0"`
	Amount   int64   `json:"amount" binding:"required,gt=0"`
}

// PlaceOrder 创建挂单
//
// 卖单需要锁定卖方可用余额：预留与挂单落库必须在同一事务内完成，
// 出现只预留不挂单（或反之）即账本缺陷。
// 买单以外部法币结算，不做代币余额前置校验，直接落库。
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*model.TradeOrder, error) {
	if req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell {
		return nil, errors.New("订单方向仅支持 buy/sell")
	}
	if req.PriceUSD <= 0 {
		return nil, errors.New("订单价格必须大于0")
	}
	if req.Amount <= 0 {
		return nil, errors.New("订单数量必须大于0")
	}

	if _, err := s.courseRepo.GetByID(ctx, req.CourseID); err != nil {
		return nil, err
	}

	orderNo := idgen.GenerateOrderNo()
	order := &model.TradeOrder{
		OrderNo:  orderNo,
		CourseID: req.CourseID,
		UserID:   req.UserID,
		Side:     req.Side,
		PriceUSD: req.PriceUSD,
		Amount:   req.Amount,
		Status:   model.OrderStatusOpen,
	}

	if req.Side == model.OrderSideBuy {
		if err := s.orderRepo.Create(ctx, nil, order); err != nil {
			return nil, fmt.Errorf("创建挂单失败: %w", err)
		}
		return order, nil
	}

	// 卖单：先快速校验可用余额，不足直接拒绝
	balance, err := s.balanceRepo.Get(ctx, req.UserID, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	if balance.Amount < req.Amount {
		return nil, repository.ErrBalanceNotEnough
	}

	sellLock := s.locks.NewLock(
		fmt.Sprintf("order:lock:user:%d:course:%d", req.UserID, req.CourseID),
		orderNo,
		30*time.Second,
	)
	err = sellLock.Lock(ctx, lockRetryInterval(s.cfg), s.cfg.Business.LockMaxRetries)
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return nil, fmt.Errorf("用户余额繁忙: %w", repository.ErrTxConflict)
		}
		return nil, err
	}
	defer sellLock.Unlock(ctx)

	err = runWithConflictRetry(s.cfg.Business.TxMaxRetries, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			// 锁内重读，取最新可用余额
			balance, err := s.balanceRepo.GetOrCreate(ctx, tx, req.UserID, req.CourseID)
			if err != nil {
				return fmt.Errorf("获取余额记录失败: %w", err)
			}

			if err := s.balanceRepo.Reserve(ctx, tx, req.UserID, req.CourseID, req.Amount); err != nil {
				return err
			}

			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return fmt.Errorf("创建挂单失败: %w", err)
			}

			transaction := &model.TokenTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        req.UserID,
				CourseID:      req.CourseID,
				RefNo:         orderNo,
				Amount:        -req.Amount,
				Type:          model.TransactionTypeReserve,
				AmountBefore:  balance.Amount,
				AmountAfter:   balance.Amount - req.Amount,
				Remark:        fmt.Sprintf("挂卖单预留-%s", orderNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("挂单成功: orderNo=%s, userID=%d, courseID=%d, side=%s, amount=%d, price=%.2f",
		orderNo, req.UserID, req.CourseID, req.Side, req.Amount, req.PriceUSD)

	return order, nil
}

// ListOrders 按课程/方向过滤挂单，结果数量封顶（默认 100 条）
func (s *OrderService) ListOrders(ctx context.Context, courseID int64, side string) ([]*model.TradeOrder, error) {
	if side != "" && side != model.OrderSideBuy && side != model.OrderSideSell {
		return nil, errors.New("订单方向仅支持 buy/sell")
	}

	limit := s.cfg.Business.OrderListLimit
	if limit <= 0 {
		limit = 100
	}

	return s.orderRepo.List(ctx, courseID, side, limit)
}

// GetOrder 按挂单号查询
func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.TradeOrder, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

// CancelOrder 撤单
// 卖单剩余未成交数量从预留余额回退到可用余额，状态流转与回退同事务
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string) (*model.TradeOrder, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusOpen {
		return nil, fmt.Errorf("订单状态不允许撤单，当前状态: %s: %w", order.Status, repository.ErrOrderStatusInvalid)
	}

	cancelLock := s.locks.NewLock(
		fmt.Sprintf("order:lock:user:%d:course:%d", order.UserID, order.CourseID),
		orderNo,
		30*time.Second,
	)
	err = cancelLock.Lock(ctx, lockRetryInterval(s.cfg), s.cfg.Business.LockMaxRetries)
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return nil, fmt.Errorf("用户余额繁忙: %w", repository.ErrTxConflict)
		}
		return nil, err
	}
	defer cancelLock.Unlock(ctx)

	err = runWithConflictRetry(s.cfg.Business.TxMaxRetries, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			// 锁内重读，剩余数量可能已被撮合扣减
			order, err = s.orderRepo.GetByOrderNo(ctx, orderNo)
			if err != nil {
				return err
			}

			if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, model.OrderStatusOpen, model.OrderStatusCancelled); err != nil {
				return err
			}

			if order.Side != model.OrderSideSell || order.Amount <= 0 {
				return nil
			}

			balance, err := s.balanceRepo.GetOrCreate(ctx, tx, order.UserID, order.CourseID)
			if err != nil {
				return fmt.Errorf("获取余额记录失败: %w", err)
			}

			if err := s.balanceRepo.Unreserve(ctx, tx, order.UserID, order.CourseID, order.Amount); err != nil {
				return err
			}

			transaction := &model.TokenTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        order.UserID,
				CourseID:      order.CourseID,
				RefNo:         orderNo,
				Amount:        order.Amount,
				Type:          model.TransactionTypeRelease,
				AmountBefore:  balance.Amount,
				AmountAfter:   balance.Amount + order.Amount,
				Remark:        fmt.Sprintf("撤单释放-%s", orderNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("撤单成功: orderNo=%s, userID=%d, released=%d", orderNo, order.UserID, order.Amount)

	order.Status = model.OrderStatusCancelled
	return order, nil
}
