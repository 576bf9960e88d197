package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 记录级互斥锁
// ============================================================================
//
// 账本的多步变更（购买发放、挂单预留、撮合结算）不允许与并发请求在同一
// 课程/余额记录上交错执行。课程之间相互独立，因此锁粒度按课程（或用户+课程）
// 划分，不同课程可以完全并发。
//
// 获取锁有界重试，重试耗尽由上层映射为事务冲突错误返回给调用方，
// 不允许无限阻塞。
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// Locker 单个互斥锁的通用接口
// Redis 实现用于多实例部署，进程内实现用于单实例与测试
type Locker interface {
	// Lock 阻塞式获取锁（有界重试），重试耗尽返回 ErrLockFailed
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	// Unlock 释放锁，只有持有者能释放
	Unlock(ctx context.Context) error
}

// Provider 锁工厂，按 key 创建锁实例
type Provider interface {
	NewLock(key, value string, expiration time.Duration) Locker
}

// ============================================================================
// Redis 实现
// ============================================================================
//
// 加锁：SET key value NX EX timeout
//   - NX 保证互斥，EX 防止持有者崩溃后死锁
//   - value 为持有者标识，释放时校验，防止误删别人的锁
// 释放：Lua 脚本保证"校验+删除"原子执行
// ============================================================================

// DistributedLock 基于 Redis 的分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识（释放时校验）
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
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

// Unlock 释放锁
// Lua 脚本校验 value 后删除，避免释放到已被他人持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// RedisProvider 基于 Redis 的锁工厂
type RedisProvider struct {
	client *redis.Client
}

func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

func (p *RedisProvider) NewLock(key, value string, expiration time.Duration) Locker {
	return NewDistributedLock(p.client, key, value, expiration)
}
