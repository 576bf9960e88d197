package service

import (
	"errors"
	"time"

	"tokenmarket/internal/config"
	"tokenmarket/internal/repository"
)

// runWithConflictRetry 条件更新未命中（并发竞争）时有限次重试整个事务，
// 重试耗尽将冲突错误原样上抛，由调用方决定是否重发请求
func runWithConflictRetry(maxRetries int, fn func() error) error {
	var err error
	for i := 0; i <= maxRetries; i++ {
		err = fn()
		if err == nil || !errors.Is(err, repository.ErrTxConflict) {
			return err
		}
	}
	return err
}

func lockRetryInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Business.LockRetryIntervalMs) * time.Millisecond
}
