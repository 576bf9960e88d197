package service

import (
	"context"
	"testing"

	"tokenmarket/internal/config"
	"tokenmarket/internal/infrastructure/lock"
	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 内存数据库，每个测试用例独立一份
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseToken{},
		&model.Balance{},
		&model.TradeOrder{},
		&model.Purchase{},
		&model.TokenTransaction{},
		&model.OutboxMessage{},
	)
	require.NoError(t, err)

	return db
}

// testConfig 测试用业务参数，锁重试间隔压到最小
func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				PurchaseResult: "tokenmarket.purchase.result",
				TradeResult:    "tokenmarket.trade.result",
			},
		},
		Business: config.BusinessConfig{
			RewardRatio:         0.01,
			MinRewardTokens:     1,
			TradeFeeRatio:       0.005,
			OrderListLimit:      100,
			LockRetryIntervalMs: 1,
			LockMaxRetries:      3,
			TxMaxRetries:        3,
			MaxRetryCount:       3,
		},
	}
}

func testLocks() lock.Provider {
	return lock.NewLocalProvider()
}

// createTestUser 测试用户
func createTestUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		Role:     model.UserRoleBoth,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTestCourse 走正式服务创建课程（同时生成代币记录）
func createTestCourse(t *testing.T, db *gorm.DB, creatorID, tokenSupply int64, priceUSD float64) *model.Course {
	t.Helper()
	svc := NewCourseService(db)
	course, err := svc.CreateCourse(context.Background(), &CreateCourseRequest{
		CreatorID:          creatorID,
		Title:              "Go 工程实践",
		PriceUSD:           priceUSD,
		TokenSymbol:        "GOPL",
		TokenSupply:        tokenSupply,
		TreasuryETHAddress: "0xtreasury",
	})
	require.NoError(t, err)
	return course
}

// creditBalance 直接给用户发代币（绕开购买流程的测试捷径）
func creditBalance(t *testing.T, db *gorm.DB, userID, courseID, amount int64) {
	t.Helper()
	repo := repository.NewBalanceRepository(db)
	require.NoError(t, repo.Credit(context.Background(), nil, userID, courseID, amount))
}
