// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	TotalReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schemafx_requests_total",
		Help: "请求总数",
	})
	FailReq = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schemafx_requests_failed",
		Help: "请求失败数",
	})
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schemafx_http_request_duration_seconds",
		Help:    "HTTP 请求耗时分布",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(TotalReq, FailReq, httpRequestDuration)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时直方图和总量计数。
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		TotalReq.Inc()
		if status >= http.StatusInternalServerError {
			FailReq.Inc()
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}
}
