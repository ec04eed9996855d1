// metrics.go — Prometheus HTTP метрики QuickShare:
// qs_http_requests_total, qs_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qs_http_requests_total",
			Help: "Общее количество HTTP-запросов к QuickShare",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к QuickShare в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// knownPaths — маршруты, которые попадают в метки как есть.
var knownPaths = map[string]bool{
	"/":             true,
	"/upload":       true,
	"/download":     true,
	"/cleanup":      true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// normalizePath сворачивает пути файлов в /files/{key}, а неизвестные
// пути в "other", чтобы ограничить кардинальность меток.
func normalizePath(path string) string {
	switch {
	case knownPaths[path]:
		return path
	case strings.HasPrefix(path, "/files/"):
		return "/files/{key}"
	default:
		return "other"
	}
}
