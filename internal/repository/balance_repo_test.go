package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBalanceRepository(db)
	ctx := context.Background()

	t.Run("未持仓时返回零值快照且不落库", func(t *testing.T) {
		balance, err := repo.Get(ctx, 1, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance.Amount)
		assert.Equal(t, int64(0), balance.Reserved)
		assert.Equal(t, int64(0), balance.ID)

		// Get 不应产生记录
		var count int64
		db.Table("balance").Where("user_id = ? AND course_id = ?", 1, 100).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("入账自动创建记录", func(t *testing.T) {
		err := repo.Credit(ctx, nil, 1, 100, 50)
		require.NoError(t, err)

		balance, err := repo.Get(ctx, 1, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance.Amount)
		assert.Equal(t, int64(0), balance.Reserved)

		// 再次入账走已有记录
		err = repo.Credit(ctx, nil, 1, 100, 30)
		require.NoError(t, err)

		balance, err = repo.Get(ctx, 1, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(80), balance.Amount)
	})

	t.Run("GetOrCreate并发幂等", func(t *testing.T) {
		first, err := repo.GetOrCreate(ctx, nil, 2, 100)
		require.NoError(t, err)
		second, err := repo.GetOrCreate(ctx, nil, 2, 100)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("预留把可用余额划转到预留余额", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 3, 100, 10))

		err := repo.Reserve(ctx, nil, 3, 100, 4)
		require.NoError(t, err)

		balance, err := repo.Get(ctx, 3, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(6), balance.Amount)
		assert.Equal(t, int64(4), balance.Reserved)
	})

	t.Run("可用余额不足时预留失败且余额不变", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 4, 100, 3))

		err := repo.Reserve(ctx, nil, 4, 100, 5)
		assert.ErrorIs(t, err, ErrBalanceNotEnough)

		balance, err := repo.Get(ctx, 4, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(3), balance.Amount)
		assert.Equal(t, int64(0), balance.Reserved)
	})

	t.Run("释放预留扣减预留余额", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 5, 100, 10))
		require.NoError(t, repo.Reserve(ctx, nil, 5, 100, 6))

		err := repo.ReleaseReserved(ctx, nil, 5, 100, 6)
		require.NoError(t, err)

		balance, err := repo.Get(ctx, 5, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(4), balance.Amount)
		assert.Equal(t, int64(0), balance.Reserved)
	})

	t.Run("预留不足时释放属于不变量破坏", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 6, 100, 10))

		err := repo.ReleaseReserved(ctx, nil, 6, 100, 1)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("撤单回退预留到可用", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 7, 100, 10))
		require.NoError(t, repo.Reserve(ctx, nil, 7, 100, 8))

		err := repo.Unreserve(ctx, nil, 7, 100, 8)
		require.NoError(t, err)

		balance, err := repo.Get(ctx, 7, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(10), balance.Amount)
		assert.Equal(t, int64(0), balance.Reserved)
	})

	t.Run("按用户列出全部持仓", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 8, 100, 1))
		require.NoError(t, repo.Credit(ctx, nil, 8, 200, 2))

		balances, err := repo.ListByUserID(ctx, 8)
		require.NoError(t, err)
		require.Len(t, balances, 2)
		assert.Equal(t, int64(100), balances[0].CourseID)
		assert.Equal(t, int64(200), balances[1].CourseID)
	})

	t.Run("按课程统计持仓包含预留部分", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, nil, 9, 300, 10))
		require.NoError(t, repo.Credit(ctx, nil, 10, 300, 5))
		require.NoError(t, repo.Reserve(ctx, nil, 9, 300, 4))

		total, err := repo.SumByCourseID(ctx, 300)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
	})
}
