// Package metrics содержит метрики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry хранит коллекторы сервиса.
	Registry = prometheus.NewRegistry()

	starCreations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "starsky",
			Subsystem: "stars",
			Name:      "create_total",
			Help:      "Star creation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	starCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "starsky",
			Subsystem: "stars",
			Name:      "create_duration_seconds",
			Help:      "Duration of the star creation transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	purchasesFulfilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "starsky",
			Subsystem: "purchases",
			Name:      "fulfilled_total",
			Help:      "Purchases fulfilled with credits.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "starsky",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "starsky",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		starCreations,
		starCreateDuration,
		purchasesFulfilled,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler отдаёт зарегистрированные метрики.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordStarCreation учитывает попытку создания звезды.
func RecordStarCreation(outcome string, d time.Duration) {
	starCreations.WithLabelValues(outcome).Inc()
	starCreateDuration.Observe(d.Seconds())
}

// RecordPurchaseFulfilled учитывает исполненную покупку.
func RecordPurchaseFulfilled() {
	purchasesFulfilled.Inc()
}

// InstrumentHandler собирает метрики HTTP-запросов. Маршрут берётся из шаблона chi,
// чтобы идентификаторы в пути не раздували число серий.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush нужен потоковым ответам (SSE).
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
