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

var (
	ErrInvalidOrderSides = errors.New("订单方向不合法")
	ErrCourseMismatch    = errors.New("订单课程不一致")
)

type TradeService struct {
	db              *gorm.DB
	locks           lock.Provider
	cfg             *config.Config
	orderRepo       *repository.OrderRepository
	balanceRepo     *repository.BalanceRepository
	tokenRepo       *repository.TokenRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewTradeService(db *gorm.DB, locks lock.Provider, cfg *config.Config) *TradeService {
	return &TradeService{
		db:              db,
		locks:           locks,
		cfg:             cfg,
		orderRepo:       repository.NewOrderRepository(db),
		balanceRepo:     repository.NewBalanceRepository(db),
		tokenRepo:       repository.NewTokenRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type MatchRequest struct {
	BuyOrderNo  string `json:"buy_order_no" binding:"required"`
	SellOrderNo string `json:"sell_order_no" binding:"required"`
	Amount      int64  `json:"amount" binding:"gte=0"`
}

type MatchResponse struct {
	TradeNo      string  `json:"trade_no"`
	FilledAmount int64   `json:"filled_amount"`
	PriceUSD     float64 `json:"price_usd"`
}

// openAmount 订单可成交数量，非 OPEN 状态（已全部成交/已撤单）视为 0
func openAmount(order *model.TradeOrder) int64 {
	if order.Status != model.OrderStatusOpen {
		return 0
	}
	return order.Amount
}

// Match 对指定买单/卖单执行一次撮合
//
// 成交量 = min(请求量, 买单剩余, 卖单剩余)，部分成交是一等公民：
// 未吃完的订单保持 OPEN 并保留剩余数量。成交量为 0 是合法结果
// （请求量为 0 或某一侧已无剩余），不算错误，由调用方自行解读。
//
// 成交价固定取卖单限价（taker-at-maker-price）。这里刻意不校验
// buy.price >= sell.price —— 外部调用方负责配对合理的订单。
//
// 【关键点】订单扣减、卖方预留释放、买方入账、手续费计入国库收入
// 必须同事务完成，且按课程维度加锁防止与购买发放/其他撮合交错。
func (s *TradeService) Match(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	if req.Amount < 0 {
		return nil, errors.New("撮合数量不能为负")
	}

	buy, err := s.orderRepo.GetByOrderNo(ctx, req.BuyOrderNo)
	if err != nil {
		return nil, err
	}
	sell, err := s.orderRepo.GetByOrderNo(ctx, req.SellOrderNo)
	if err != nil {
		return nil, err
	}

	if buy.Side != model.OrderSideBuy || sell.Side != model.OrderSideSell {
		return nil, ErrInvalidOrderSides
	}
	if buy.CourseID != sell.CourseID {
		return nil, ErrCourseMismatch
	}

	courseID := sell.CourseID
	tradeNo := idgen.GenerateTradeNo()

	tradeLock := s.locks.NewLock(
		fmt.Sprintf("trade:lock:course:%d", courseID),
		tradeNo,
		30*time.Second,
	)
	err = tradeLock.Lock(ctx, lockRetryInterval(s.cfg), s.cfg.Business.LockMaxRetries)
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return nil, fmt.Errorf("课程账本繁忙: %w", repository.ErrTxConflict)
		}
		return nil, err
	}
	defer tradeLock.Unlock(ctx)

	var resp *MatchResponse
	err = runWithConflictRetry(s.cfg.Business.TxMaxRetries, func() error {
		// 锁内重读，取最新剩余数量
		buy, err = s.orderRepo.GetByOrderNo(ctx, req.BuyOrderNo)
		if err != nil {
			return err
		}
		sell, err = s.orderRepo.GetByOrderNo(ctx, req.SellOrderNo)
		if err != nil {
			return err
		}

		filled := req.Amount
		if fillable := openAmount(buy); fillable < filled {
			filled = fillable
		}
		if fillable := openAmount(sell); fillable < filled {
			filled = fillable
		}

		price := sell.PriceUSD

		if filled <= 0 {
			// 空成交，不动账本
			resp = &MatchResponse{TradeNo: tradeNo, FilledAmount: 0, PriceUSD: price}
			return nil
		}

		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.orderRepo.Fill(ctx, tx, buy.OrderNo, filled); err != nil {
				return fmt.Errorf("买单扣减失败: %w", err)
			}
			if err := s.orderRepo.Fill(ctx, tx, sell.OrderNo, filled); err != nil {
				return fmt.Errorf("卖单扣减失败: %w", err)
			}

			sellerBalance, err := s.balanceRepo.GetOrCreate(ctx, tx, sell.UserID, courseID)
			if err != nil {
				return fmt.Errorf("获取卖方余额记录失败: %w", err)
			}
			// 卖方成交代币从预留余额划出
			if err := s.balanceRepo.ReleaseReserved(ctx, tx, sell.UserID, courseID, filled); err != nil {
				return err
			}

			buyerBalance, err := s.balanceRepo.GetOrCreate(ctx, tx, buy.UserID, courseID)
			if err != nil {
				return fmt.Errorf("获取买方余额记录失败: %w", err)
			}
			if err := s.balanceRepo.Credit(ctx, tx, buy.UserID, courseID, filled); err != nil {
				return fmt.Errorf("买方入账失败: %w", err)
			}

			// 二级市场手续费计入国库收入，不改变供应量
			feeUSD := float64(filled) * price * s.cfg.Business.TradeFeeRatio
			if err := s.tokenRepo.AddRevenue(ctx, tx, courseID, feeUSD); err != nil {
				return fmt.Errorf("手续费入账失败: %w", err)
			}

			sellerTxn := &model.TokenTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        sell.UserID,
				CourseID:      courseID,
				RefNo:         tradeNo,
				Amount:        -filled,
				Type:          model.TransactionTypeTradeOut,
				AmountBefore:  sellerBalance.Reserved,
				AmountAfter:   sellerBalance.Reserved - filled,
				Remark:        fmt.Sprintf("成交卖出（预留扣减）-%s", sell.OrderNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, sellerTxn); err != nil {
				return fmt.Errorf("记录卖方流水失败: %w", err)
			}

			buyerTxn := &model.TokenTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserID:        buy.UserID,
				CourseID:      courseID,
				RefNo:         tradeNo,
				Amount:        filled,
				Type:          model.TransactionTypeTradeIn,
				AmountBefore:  buyerBalance.Amount,
				AmountAfter:   buyerBalance.Amount + filled,
				Remark:        fmt.Sprintf("成交买入-%s", buy.OrderNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, buyerTxn); err != nil {
				return fmt.Errorf("记录买方流水失败: %w", err)
			}

			msgPayload := map[string]interface{}{
				"trade_no":      tradeNo,
				"buy_order_no":  buy.OrderNo,
				"sell_order_no": sell.OrderNo,
				"course_id":     courseID,
				"buyer_id":      buy.UserID,
				"seller_id":     sell.UserID,
				"filled_amount": filled,
				"price_usd":     price,
				"fee_usd":       feeUSD,
				"traded_at":     time.Now().Format(time.RFC3339),
			}
			payloadBytes, _ := json.Marshal(msgPayload)

			outboxMsg := &model.OutboxMessage{
				MessageKey: tradeNo,
				Topic:      s.cfg.Kafka.Topic.TradeResult,
				Payload:    string(payloadBytes),
				Status:     model.OutboxStatusPending,
			}
			if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}

			resp = &MatchResponse{TradeNo: tradeNo, FilledAmount: filled, PriceUSD: price}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if resp.FilledAmount > 0 {
		log.Printf("撮合成交: tradeNo=%s, buy=%s, sell=%s, filled=%d, price=%.2f",
			tradeNo, req.BuyOrderNo, req.SellOrderNo, resp.FilledAmount, resp.PriceUSD)
	}

	return resp, nil
}
