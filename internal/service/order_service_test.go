package service

import (
	"context"
	"testing"

	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_PlaceOrder(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	svc := NewOrderService(db, testLocks(), cfg)
	ctx := context.Background()

	creator := createTestUser(t, db, "teacher")
	seller := createTestUser(t, db, "seller")
	buyer := createTestUser(t, db, "buyer")
	course := createTestCourse(t, db, creator.ID, 1000, 50.0)

	balanceRepo := repository.NewBalanceRepository(db)

	t.Run("卖单同事务预留卖方余额", func(t *testing.T) {
		creditBalance(t, db, seller.ID, course.ID, 10)

		order, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID:   seller.ID,
			CourseID: course.ID,
			Side:     model.OrderSideSell,
			PriceUSD: 2.0,
			Amount:   5,
		})
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusOpen, order.Status)

		balance, err := balanceRepo.Get(ctx, seller.ID, course.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), balance.Amount)
		assert.Equal(t, int64(5), balance.Reserved)

		// 预留流水
		var txnCount int64
		db.Table("token_transaction").Where("ref_no = ? AND type = ?", order.OrderNo, model.TransactionTypeReserve).Count(&txnCount)
		assert.Equal(t, int64(1), txnCount)
	})

	t.Run("可用余额不足时拒绝卖单且不留痕", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID:   seller.ID,
			CourseID: course.ID,
			Side:     model.OrderSideSell,
			PriceUSD: 2.0,
			Amount:   100,
		})
		assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)

		// 余额不变，也没有产生订单
		balance, err := balanceRepo.Get(ctx, seller.ID, course.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), balance.Amount)
		assert.Equal(t, int64(5), balance.Reserved)

		var count int64
		db.Table("trade_order").Where("user_id = ? AND amount = ?", seller.ID, 100).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("买单不做余额前置校验", func(t *testing.T) {
		order, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID:   buyer.ID,
			CourseID: course.ID,
			Side:     model.OrderSideBuy,
			PriceUSD: 2.5,
			Amount:   5,
		})
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusOpen, order.Status)
	})

	t.Run("价格和数量必须为正", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID: buyer.ID, CourseID: course.ID,
			Side: model.OrderSideBuy, PriceUSD: 0, Amount: 5,
		})
		assert.Error(t, err)

		_, err = svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID: buyer.ID, CourseID: course.ID,
			Side: model.OrderSideBuy, PriceUSD: 2.0, Amount: 0,
		})
		assert.Error(t, err)
	})

	t.Run("课程不存在", func(t *testing.T) {
		_, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID: buyer.ID, CourseID: 9999,
			Side: model.OrderSideBuy, PriceUSD: 2.0, Amount: 5,
		})
		assert.ErrorIs(t, err, repository.ErrCourseNotFound)
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	svc := NewOrderService(db, testLocks(), cfg)
	ctx := context.Background()

	creator := createTestUser(t, db, "teacher")
	seller := createTestUser(t, db, "seller")
	course := createTestCourse(t, db, creator.ID, 1000, 50.0)

	balanceRepo := repository.NewBalanceRepository(db)

	t.Run("撤销卖单回退预留余额", func(t *testing.T) {
		creditBalance(t, db, seller.ID, course.ID, 10)

		order, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID:   seller.ID,
			CourseID: course.ID,
			Side:     model.OrderSideSell,
			PriceUSD: 2.0,
			Amount:   6,
		})
		require.NoError(t, err)

		cancelled, err := svc.CancelOrder(ctx, order.OrderNo)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)

		balance, err := balanceRepo.Get(ctx, seller.ID, course.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), balance.Amount)
		assert.Equal(t, int64(0), balance.Reserved)

		// 释放流水
		var txnCount int64
		db.Table("token_transaction").Where("ref_no = ? AND type = ?", order.OrderNo, model.TransactionTypeRelease).Count(&txnCount)
		assert.Equal(t, int64(1), txnCount)
	})

	t.Run("重复撤单被状态机拒绝", func(t *testing.T) {
		creditBalance(t, db, seller.ID, course.ID, 5)

		order, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID:   seller.ID,
			CourseID: course.ID,
			Side:     model.OrderSideSell,
			PriceUSD: 2.0,
			Amount:   5,
		})
		require.NoError(t, err)

		_, err = svc.CancelOrder(ctx, order.OrderNo)
		require.NoError(t, err)

		_, err = svc.CancelOrder(ctx, order.OrderNo)
		assert.ErrorIs(t, err, repository.ErrOrderStatusInvalid)
	})

	t.Run("订单不存在", func(t *testing.T) {
		_, err := svc.CancelOrder(ctx, "ORD-NOPE")
		assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	})
}

func TestOrderService_ListOrders(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	cfg.Business.OrderListLimit = 3
	svc := NewOrderService(db, testLocks(), cfg)
	ctx := context.Background()

	creator := createTestUser(t, db, "teacher")
	buyer := createTestUser(t, db, "buyer")
	course := createTestCourse(t, db, creator.ID, 1000, 50.0)

	for i := 0; i < 5; i++ {
		_, err := svc.PlaceOrder(ctx, &PlaceOrderRequest{
			UserID:   buyer.ID,
			CourseID: course.ID,
			Side:     model.OrderSideBuy,
			PriceUSD: 2.0,
			Amount:   1,
		})
		require.NoError(t, err)
	}

	t.Run("结果数量封顶", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, course.ID, "")
		require.NoError(t, err)
		assert.Len(t, orders, 3)
	})

	t.Run("按方向过滤", func(t *testing.T) {
		orders, err := svc.ListOrders(ctx, course.ID, model.OrderSideSell)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("非法方向", func(t *testing.T) {
		_, err := svc.ListOrders(ctx, course.ID, "short")
		assert.Error(t, err)
	})
}
