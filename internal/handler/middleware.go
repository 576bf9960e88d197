package handler

import (
	"log"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware 访问日志中间件
// 带上 X-Request-ID（如果调用方传了），方便与购买幂等键串联排查
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}
		requestID := c.GetHeader("X-Request-ID")

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if requestID != "" {
			log.Printf("[HTTP] %d | %13v | %15s | %-7s %s | req=%s",
				status, latency, c.ClientIP(), c.Request.Method, path, requestID)
			return
		}
		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status, latency, c.ClientIP(), c.Request.Method, path)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %s %s: %v\n%s",
					c.Request.Method, c.Request.URL.Path, err, debug.Stack())
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
