package repository

import (
	"testing"

	"tokenmarket/internal/model"

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
