package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "auth_events_total",
			Help:      "Account lifecycle events by type.",
		},
		[]string{"event"}, // e.g. registered, activated, otp_sent, login_failed, locked, unlocked
	)

	notificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "notifications_total",
			Help:      "Notification jobs by template and outcome.",
		},
		[]string{"template", "outcome"}, // outcome: enqueued, sent, retry, failed
	)

	notificationDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backoffice",
			Name:      "notification_delivery_duration_seconds",
			Help:      "Duration of notification render and delivery.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"template"},
	)

	uploadsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "uploads_total",
			Help:      "Image upload jobs by outcome.",
		},
		[]string{"image_type", "outcome"}, // outcome: scheduled, completed, retry, failed
	)

	rateLimitedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"group"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backoffice",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// AuthEvent counts one account lifecycle event.
func AuthEvent(event string) {
	authEventsCounter.WithLabelValues(event).Inc()
}

// Notification counts one notification outcome.
func Notification(template, outcome string) {
	notificationsCounter.WithLabelValues(template, outcome).Inc()
}

// ObserveNotification records render and delivery time.
func ObserveNotification(template string, d time.Duration) {
	notificationDurationHist.WithLabelValues(template).Observe(d.Seconds())
}

// Upload counts one upload outcome.
func Upload(imageType, outcome string) {
	uploadsCounter.WithLabelValues(imageType, outcome).Inc()
}

// RateLimited counts one throttled request.
func RateLimited(group string) {
	rateLimitedCounter.WithLabelValues(group).Inc()
}

// GinMiddleware records request count and latency per route pattern.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		httpRequestDurationSeconds.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
