package service

import (
	"context"
	"testing"

	"tokenmarket/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseService_CreateCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCourseService(db)
	ctx := context.Background()

	creator := createTestUser(t, db, "creator")

	t.Run("课程与代币记录同事务创建", func(t *testing.T) {
		course, err := svc.CreateCourse(ctx, &CreateCourseRequest{
			CreatorID:          creator.ID,
			Title:              "分布式系统入门",
			PriceUSD:           49.9,
			TokenSymbol:        "DIST",
			TokenSupply:        1000,
			TreasuryETHAddress: "0xtreasury",
		})
		require.NoError(t, err)
		require.NotZero(t, course.ID)

		got, token, err := svc.GetCourseDetail(ctx, course.ID)
		require.NoError(t, err)
		assert.Equal(t, course.ID, got.ID)

		// 初始状态：全部供应量进国库，流通为零
		assert.Equal(t, int64(1000), token.TotalSupply)
		assert.Equal(t, int64(0), token.CirculatingSupply)
		assert.Equal(t, int64(1000), token.TreasuryTokenBalance)
		assert.Equal(t, token.TotalSupply, token.CirculatingSupply+token.TreasuryTokenBalance)
		assert.InDelta(t, 0, token.TreasuryRevenueUSD, 1e-9)
	})

	t.Run("创建者不存在", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, &CreateCourseRequest{
			CreatorID:          9999,
			Title:              "幽灵课程",
			TokenSymbol:        "GHST",
			TokenSupply:        100,
			TreasuryETHAddress: "0xtreasury",
		})
		assert.ErrorIs(t, err, repository.ErrUserNotFound)
	})

	t.Run("代币总量必须为正", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, &CreateCourseRequest{
			CreatorID:          creator.ID,
			Title:              "零供应课程",
			TokenSymbol:        "ZERO",
			TokenSupply:        0,
			TreasuryETHAddress: "0xtreasury",
		})
		assert.Error(t, err)
	})

	t.Run("课程不存在", func(t *testing.T) {
		_, _, err := svc.GetCourseDetail(ctx, 9999)
		assert.ErrorIs(t, err, repository.ErrCourseNotFound)
	})
}
