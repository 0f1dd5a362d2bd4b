package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"collecti-backend/internal/adapters/embed"
	"collecti-backend/internal/adapters/recommender"
	"collecti-backend/internal/adapters/repo"
	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/cache"
	"collecti-backend/internal/infra/config"
	"collecti-backend/internal/infra/db"
	httpinfra "collecti-backend/internal/infra/http"
	applog "collecti-backend/internal/infra/log"
	"collecti-backend/internal/infra/metrics"
	"collecti-backend/internal/infra/queue"
	"collecti-backend/internal/usecase/collections"
	"collecti-backend/internal/usecase/recommend"
	"collecti-backend/internal/usecase/search"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("api: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("api: не указан секрет токенов (JWT_SECRET)")
	}

	repoAdapter := repo.NewPostgres(pool)
	appCache := cache.NewRedis(redisClient)

	var thumbQueue domain.ThumbnailQueue
	if cfg.RabbitURL != "" {
		rabbitQueue, err := queue.NewRabbitThumbnailQueue(cfg.RabbitURL, cfg.RabbitManagementURL, cfg.Queues.Thumbnails)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		thumbQueue = rabbitQueue
	} else {
		thumbQueue = queue.NewRedisThumbnailQueue(redisClient, cfg.Queues.Thumbnails)
	}

	recService := recommend.NewService(
		repoAdapter, repoAdapter, repoAdapter,
		recommender.NewKeywordScorer(),
		appCache,
		cfg.Recommendations.CacheTTL,
		cfg.Recommendations.CandidatePool,
		logger.With().Str("component", "recommend").Logger(),
	)
	colService := collections.NewService(
		repoAdapter, repoAdapter, repoAdapter,
		thumbQueue,
		embed.DetectPlatform,
		recService,
		logger.With().Str("component", "collections").Logger(),
	)
	searchManager := search.NewManager(
		repoAdapter,
		cfg.Search.PageSize,
		cfg.Search.SessionTTL,
		logger.With().Str("component", "search").Logger(),
	)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	handler := httpinfra.NewHandler(colService, recService, searchManager, cfg.Recommendations.MaxItems, logger.With().Str("component", "api").Logger())
	handler.Mount(server.Router, cfg.Auth.JWTSecret)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: остановка сервера не удалась")
		}
	}()

	if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("api: сервер завершился с ошибкой")
	}
	logger.Info().Msg("api: остановлен")
}
