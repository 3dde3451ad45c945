package middleware

import (
	"time"

	"github.com/APasz/Yukibot/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @description
 * - 统计HTTP服务器收到的请求数量和处理时间
 * - 状态码>=400的请求计入错误数
 * - 为健康检查接口提供请求数据
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := c.Writer.Status()

		// 使用路由模板作为服务名，避免按具体参数值打散指标
		serviceName := c.FullPath()
		if serviceName == "" {
			serviceName = "unknown"
		}

		services.IncrementRequestCount(serviceName)
		services.RecordRequestDuration(serviceName, duration)
		if statusCode >= 400 {
			services.IncrementErrorCount(serviceName)
		}
	}
}
