package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"collecti-backend/internal/adapters/embed"
	"collecti-backend/internal/adapters/repo"
	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/config"
	"collecti-backend/internal/infra/db"
	applog "collecti-backend/internal/infra/log"
	"collecti-backend/internal/infra/metrics"
	"collecti-backend/internal/infra/queue"
	"collecti-backend/internal/usecase/thumbs"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("thumbnailer: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var thumbQueue domain.ThumbnailQueue
	if cfg.RabbitURL != "" {
		rabbitQueue, err := queue.NewRabbitThumbnailQueue(cfg.RabbitURL, cfg.RabbitManagementURL, cfg.Queues.Thumbnails)
		if err != nil {
			logger.Fatal().Err(err).Msg("thumbnailer: не удалось инициализировать очередь RabbitMQ")
		}
		thumbQueue = rabbitQueue
	} else {
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("thumbnailer: не указан ни RabbitMQ, ни Redis")
		}
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		thumbQueue = queue.NewRedisThumbnailQueue(redisClient, cfg.Queues.Thumbnails)
	}

	resolver := embed.NewResolver(cfg.Embeds.OEmbedInterval, logger.With().Str("component", "oembed").Logger())
	service := thumbs.NewService(repoAdapter, repoAdapter, resolver, logger.With().Str("component", "thumbs").Logger())

	logger.Info().Msg("thumbnailer: запуск обработки очереди")
	if err := service.Run(ctx, thumbQueue); err != nil {
		logger.Fatal().Err(err).Msg("thumbnailer: воркер завершился с ошибкой")
	}
	logger.Info().Msg("thumbnailer: остановлен")
}
