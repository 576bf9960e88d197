package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("同key互斥", func(t *testing.T) {
		p := NewLocalProvider()

		first := p.NewLock("course:1", "holder-a", time.Minute)
		require.NoError(t, first.Lock(ctx, time.Millisecond, 1))

		second := p.NewLock("course:1", "holder-b", time.Minute)
		err := second.Lock(ctx, time.Millisecond, 2)
		assert.ErrorIs(t, err, ErrLockFailed)

		require.NoError(t, first.Unlock(ctx))
		assert.NoError(t, second.Lock(ctx, time.Millisecond, 2))
	})

	t.Run("不同key互不影响", func(t *testing.T) {
		p := NewLocalProvider()

		a := p.NewLock("course:1", "holder-a", time.Minute)
		b := p.NewLock("course:2", "holder-b", time.Minute)
		require.NoError(t, a.Lock(ctx, time.Millisecond, 1))
		assert.NoError(t, b.Lock(ctx, time.Millisecond, 1))
	})

	t.Run("非持有者不能释放", func(t *testing.T) {
		p := NewLocalProvider()

		owner := p.NewLock("course:1", "holder-a", time.Minute)
		require.NoError(t, owner.Lock(ctx, time.Millisecond, 1))

		intruder := p.NewLock("course:1", "holder-b", time.Minute)
		require.NoError(t, intruder.Unlock(ctx))

		// 锁仍被 holder-a 持有
		another := p.NewLock("course:1", "holder-c", time.Minute)
		assert.ErrorIs(t, another.Lock(ctx, time.Millisecond, 1), ErrLockFailed)
	})

	t.Run("并发抢锁只有一个成功", func(t *testing.T) {
		p := NewLocalProvider()

		var wg sync.WaitGroup
		var mu sync.Mutex
		acquired := 0

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				l := p.NewLock("course:1", "holder", time.Minute)
				if err := l.Lock(ctx, time.Millisecond, 1); err == nil {
					mu.Lock()
					acquired++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, acquired)
	})
}
