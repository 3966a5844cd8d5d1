package middleware

import (
	"log/slog"
	"net/http"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/metrics"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
)

// LoginRateLimiter 按客户端 IP 限制登录尝试频率。
//
// 桶耗尽时返回 429。Redis 故障时放行并记录日志，
// 限流器不应把登录整体拖垮。
func LoginRateLimiter(limiter *ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("login ratelimit check failed", slog.String("error", err.Error()))
			}
			c.Next()
			return
		}
		if !allowed {
			if metrics.LoginThrottledTotal != nil {
				metrics.LoginThrottledTotal.Inc()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many login attempts"})
			return
		}
		c.Next()
	}
}
