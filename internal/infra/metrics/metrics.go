package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RecommendationBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_build_seconds",
		Help:    "Время построения рекомендаций",
		Buckets: prometheus.DefBuckets,
	})
	RecommendationRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_requests_total",
		Help: "Запросы рекомендаций по ступеням выдачи",
	}, []string{"tier"})
	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Запросы поисковой выдачи по режимам",
	}, []string{"mode"})
	ThumbnailJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thumbnail_jobs_total",
		Help: "Обработанные задачи пересчёта миниатюр",
	}, []string{"result"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RecommendationBuildSeconds,
		RecommendationRequestsTotal,
		SearchRequestsTotal,
		ThumbnailJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncRecommendationTier увеличивает счётчик выдачи указанной ступени.
func IncRecommendationTier(tier string) {
	RecommendationRequestsTotal.WithLabelValues(tier).Inc()
}

// IncSearchRequest увеличивает счётчик поисковых запросов режима.
func IncSearchRequest(mode string) {
	SearchRequestsTotal.WithLabelValues(mode).Inc()
}

// IncThumbnailJob увеличивает счётчик обработанных задач миниатюр.
func IncThumbnailJob(result string) {
	ThumbnailJobsTotal.WithLabelValues(result).Inc()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}
