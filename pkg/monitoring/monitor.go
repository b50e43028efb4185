package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebhookEventCounter 按事件类型和处理结果统计视频服务商回调
	WebhookEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mux_webhook_events_total",
			Help: "Total number of video provider webhook events",
		},
		[]string{"type", "outcome"},
	)

	// SSEConnections 当前打开的课程事件订阅连接数
	SSEConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "course_event_subscribers",
			Help: "Number of open course event SSE connections",
		},
	)

	// ViewRejectedCounter 因次数耗尽被拒绝的观看尝试
	ViewRejectedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "video_view_limit_rejections_total",
			Help: "Total number of view attempts rejected by the view limit",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(WebhookEventCounter)
	prometheus.MustRegister(SSEConnections)
	prometheus.MustRegister(ViewRejectedCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
