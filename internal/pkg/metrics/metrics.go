// Package metrics 定义 Prometheus 指标。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 按 method/path/status 统计请求数。
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration 请求耗时分布（秒）。
	HTTPRequestDuration *prometheus.HistogramVec
	// AuthFailureTotal 令牌校验/登录失败次数。
	AuthFailureTotal prometheus.Counter
	// LoginThrottledTotal 被限流拒绝的登录请求次数。
	LoginThrottledTotal prometheus.Counter

	initOnce sync.Once
)

// InitMetrics 注册所有指标。重复调用只生效一次（便于测试）。
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskapi_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"})

		HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskapi_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		AuthFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskapi_auth_failure_total",
			Help: "Total failed token verifications and logins.",
		})

		LoginThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskapi_login_throttled_total",
			Help: "Total login requests rejected by the rate limiter.",
		})

		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthFailureTotal,
			LoginThrottledTotal,
		)
	})
}
