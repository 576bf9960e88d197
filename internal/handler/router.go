package handler

import (
	"tokenmarket/internal/config"
	"tokenmarket/internal/infrastructure/lock"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, locks lock.Provider, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, locks, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 用户相关
		user := api.Group("/user")
		{
			user.POST("/create", h.CreateUser)
			user.GET("/list", h.ListUsers)
		}

		// 课程相关
		course := api.Group("/course")
		{
			course.POST("/create", h.CreateCourse)
			course.GET("/detail", h.GetCourse)
			course.GET("/list", h.ListCourses)
		}

		// 购买相关
		purchase := api.Group("/purchase")
		{
			purchase.POST("/execute", h.ExecutePurchase)
		}

		// 挂单相关
		order := api.Group("/order")
		{
			order.POST("/place", h.PlaceOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/cancel", h.CancelOrder)
		}

		// 撮合相关
		trade := api.Group("/trade")
		{
			trade.POST("/match", h.MatchTrade)
		}

		// 余额相关
		balance := api.Group("/balance")
		{
			balance.GET("/list", h.ListBalances)
			balance.GET("/detail", h.GetBalance)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
