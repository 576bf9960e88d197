package job

import (
	"context"
	"log"
	"time"

	"tokenmarket/internal/config"
	"tokenmarket/internal/infrastructure/mq"
	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"

	"gorm.io/gorm"
)

// SendFunc 消息投递函数，默认走 Kafka 生产者
type SendFunc func(topic, key, value string) error

// OutboxSender 发件箱投递任务
// 购买/成交事件在业务事务内写入发件箱表，这里异步批量投递到 Kafka，
// 失败累计重试次数，超限标记为 FAILED 等人工处理
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	send       SendFunc
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		send:       mq.SendMessage,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

// WithSendFunc 替换投递函数（测试注入用）
func (s *OutboxSender) WithSendFunc(fn SendFunc) *OutboxSender {
	s.send = fn
	return s
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPendingMessages 投递一批待发送消息
func (s *OutboxSender) ProcessPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询待投递消息失败: %v", err)
		return
	}

	for _, msg := range messages {
		s.deliver(ctx, msg)
	}
}

func (s *OutboxSender) deliver(ctx context.Context, msg *model.OutboxMessage) {
	err := s.send(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return
		}
		log.Printf("[OutboxSender] 消息投递成功: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.MessageKey)
		return
	}

	log.Printf("[OutboxSender] 消息投递失败: id=%d, topic=%s, err=%v", msg.ID, msg.Topic, err)

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if markErr := s.outboxRepo.MarkAsFailed(ctx, msg.ID); markErr != nil {
			log.Printf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, markErr)
		} else {
			log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
		return
	}

	if incErr := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); incErr != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, incErr)
	}
}
