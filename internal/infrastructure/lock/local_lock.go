package lock

import (
	"context"
	"sync"
	"time"
)

// LocalProvider 进程内锁工厂
// 单实例部署和测试场景下替代 Redis，语义与分布式锁一致（按 key 互斥、
// 持有者校验），但不做过期淘汰
type LocalProvider struct {
	mu   sync.Mutex
	held map[string]string // key -> 持有者标识
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{
		held: make(map[string]string),
	}
}

func (p *LocalProvider) NewLock(key, value string, expiration time.Duration) Locker {
	return &localLock{provider: p, key: key, value: value}
}

type localLock struct {
	provider *LocalProvider
	key      string
	value    string
}

func (l *localLock) tryLock() bool {
	l.provider.mu.Lock()
	defer l.provider.mu.Unlock()

	if _, ok := l.provider.held[l.key]; ok {
		return false
	}
	l.provider.held[l.key] = l.value
	return true
}

func (l *localLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		if l.tryLock() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

func (l *localLock) Unlock(ctx context.Context) error {
	l.provider.mu.Lock()
	defer l.provider.mu.Unlock()

	if holder, ok := l.provider.held[l.key]; ok && holder == l.value {
		delete(l.provider.held, l.key)
	}
	return nil
}
