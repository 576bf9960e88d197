package job

import (
	"context"
	"log"
	"time"

	"tokenmarket/internal/config"
	"tokenmarket/internal/repository"

	"gorm.io/gorm"
)

// LedgerAudit 账本对账任务
// 周期性校验每个课程的供应量守恒：
//  1. circulating_supply + treasury_token_balance == total_supply
//  2. SUM(所有用户 amount + reserved) == circulating_supply
//
// 任何一条被破坏都说明存在绕过条件更新的写入或程序缺陷，
// 对账只告警不修数——自动"修复"会掩盖缺陷本身。
type LedgerAudit struct {
	db          *gorm.DB
	tokenRepo   *repository.TokenRepository
	balanceRepo *repository.BalanceRepository
	stopCh      chan struct{}
	interval    time.Duration
}

func NewLedgerAudit(db *gorm.DB, cfg *config.Config) *LedgerAudit {
	interval := time.Duration(cfg.Business.AuditIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &LedgerAudit{
		db:          db,
		tokenRepo:   repository.NewTokenRepository(db),
		balanceRepo: repository.NewBalanceRepository(db),
		stopCh:      make(chan struct{}),
		interval:    interval,
	}
}

func (a *LedgerAudit) Start(ctx context.Context) {
	log.Println("[LedgerAudit] 账本对账任务启动")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LedgerAudit] 收到停止信号，任务退出")
			return
		case <-a.stopCh:
			log.Println("[LedgerAudit] 任务停止")
			return
		case <-ticker.C:
			if _, err := a.AuditOnce(ctx); err != nil {
				log.Printf("[LedgerAudit] 对账执行失败: %v", err)
			}
		}
	}
}

func (a *LedgerAudit) Stop() {
	close(a.stopCh)
}

// AuditOnce 执行一轮全量对账，返回发现的违规课程数
func (a *LedgerAudit) AuditOnce(ctx context.Context) (int, error) {
	tokens, err := a.tokenRepo.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	violations := 0
	for _, token := range tokens {
		if token.CirculatingSupply+token.TreasuryTokenBalance != token.TotalSupply {
			violations++
			log.Printf("[LedgerAudit] 供应量守恒被破坏: courseID=%d, circulating=%d, treasury=%d, total=%d",
				token.CourseID, token.CirculatingSupply, token.TreasuryTokenBalance, token.TotalSupply)
			continue
		}

		held, err := a.balanceRepo.SumByCourseID(ctx, token.CourseID)
		if err != nil {
			log.Printf("[LedgerAudit] 统计课程持仓失败: courseID=%d, err=%v", token.CourseID, err)
			continue
		}
		if held != token.CirculatingSupply {
			violations++
			log.Printf("[LedgerAudit] 持仓与流通量不一致: courseID=%d, held=%d, circulating=%d",
				token.CourseID, held, token.CirculatingSupply)
		}
	}

	if violations > 0 {
		log.Printf("[LedgerAudit] 本轮对账发现 %d 个课程账本异常", violations)
	}
	return violations, nil
}
