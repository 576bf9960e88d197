package job

import (
	"context"
	"errors"
	"testing"

	"tokenmarket/internal/config"
	"tokenmarket/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.CourseToken{},
		&model.Balance{},
		&model.OutboxMessage{},
	)
	require.NoError(t, err)

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			MaxRetryCount:        3,
			AuditIntervalSeconds: 60,
		},
	}
}

func TestLedgerAudit_AuditOnce(t *testing.T) {
	db := setupTestDB(t)
	audit := NewLedgerAudit(db, testConfig())
	ctx := context.Background()

	// 课程 1：账本一致（流通 30 = 用户持仓 20 可用 + 10 预留）
	require.NoError(t, db.Create(&model.CourseToken{
		CourseID: 1, TokenSymbol: "AAA",
		TotalSupply: 100, CirculatingSupply: 30, TreasuryTokenBalance: 70,
		TreasuryETHAddress: "0xa",
	}).Error)
	require.NoError(t, db.Create(&model.Balance{
		UserID: 1, CourseID: 1, Amount: 20, Reserved: 10,
	}).Error)

	t.Run("账本一致时无违规", func(t *testing.T) {
		violations, err := audit.AuditOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, violations)
	})

	t.Run("供应量守恒被破坏", func(t *testing.T) {
		require.NoError(t, db.Create(&model.CourseToken{
			CourseID: 2, TokenSymbol: "BBB",
			TotalSupply: 100, CirculatingSupply: 50, TreasuryTokenBalance: 60,
			TreasuryETHAddress: "0xb",
		}).Error)

		violations, err := audit.AuditOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, violations)
	})

	t.Run("持仓与流通量不一致", func(t *testing.T) {
		require.NoError(t, db.Create(&model.CourseToken{
			CourseID: 3, TokenSymbol: "CCC",
			TotalSupply: 100, CirculatingSupply: 10, TreasuryTokenBalance: 90,
			TreasuryETHAddress: "0xc",
		}).Error)
		// 用户实际只持有 7，流通量却是 10
		require.NoError(t, db.Create(&model.Balance{
			UserID: 1, CourseID: 3, Amount: 7, Reserved: 0,
		}).Error)

		violations, err := audit.AuditOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, violations)
	})
}

func TestOutboxSender_ProcessPendingMessages(t *testing.T) {
	ctx := context.Background()

	newPending := func(t *testing.T, db *gorm.DB, key string) *model.OutboxMessage {
		msg := &model.OutboxMessage{
			MessageKey: key,
			Topic:      "tokenmarket.purchase.result",
			Payload:    `{"purchase_no":"` + key + `"}`,
			Status:     model.OutboxStatusPending,
		}
		require.NoError(t, db.Create(msg).Error)
		return msg
	}

	t.Run("投递成功后标记SENT", func(t *testing.T) {
		db := setupTestDB(t)
		msg := newPending(t, db, "PUR001")

		var sentTopics []string
		sender := NewOutboxSender(db, testConfig()).WithSendFunc(func(topic, key, value string) error {
			sentTopics = append(sentTopics, topic)
			return nil
		})

		sender.ProcessPendingMessages(ctx)

		assert.Equal(t, []string{"tokenmarket.purchase.result"}, sentTopics)

		var got model.OutboxMessage
		require.NoError(t, db.First(&got, msg.ID).Error)
		assert.Equal(t, model.OutboxStatusSent, got.Status)
	})

	t.Run("投递失败累计重试次数", func(t *testing.T) {
		db := setupTestDB(t)
		msg := newPending(t, db, "PUR002")

		sender := NewOutboxSender(db, testConfig()).WithSendFunc(func(topic, key, value string) error {
			return errors.New("broker unavailable")
		})

		sender.ProcessPendingMessages(ctx)

		var got model.OutboxMessage
		require.NoError(t, db.First(&got, msg.ID).Error)
		assert.Equal(t, model.OutboxStatusPending, got.Status)
		assert.Equal(t, 1, got.RetryCount)
	})

	t.Run("超过最大重试次数标记FAILED", func(t *testing.T) {
		db := setupTestDB(t)
		msg := newPending(t, db, "PUR003")

		sender := NewOutboxSender(db, testConfig()).WithSendFunc(func(topic, key, value string) error {
			return errors.New("broker unavailable")
		})

		// MaxRetryCount = 3：前两轮累计重试，第三轮标记失败
		for i := 0; i < 3; i++ {
			sender.ProcessPendingMessages(ctx)
		}

		var got model.OutboxMessage
		require.NoError(t, db.First(&got, msg.ID).Error)
		assert.Equal(t, model.OutboxStatusFailed, got.Status)
	})

	t.Run("已发送消息不再投递", func(t *testing.T) {
		db := setupTestDB(t)
		msg := newPending(t, db, "PUR004")
		require.NoError(t, db.Model(msg).Update("status", model.OutboxStatusSent).Error)

		calls := 0
		sender := NewOutboxSender(db, testConfig()).WithSendFunc(func(topic, key, value string) error {
			calls++
			return nil
		})

		sender.ProcessPendingMessages(ctx)
		assert.Equal(t, 0, calls)
	})
}
