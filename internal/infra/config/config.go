package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL           string `envconfig:"RABBITMQ_URL"`
	RabbitManagementURL string `envconfig:"RABBITMQ_MANAGEMENT_URL"`

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	} `envconfig:""`

	Recommendations struct {
		MaxItems      int           `envconfig:"RECS_MAX_ITEMS" default:"10"`
		CandidatePool int           `envconfig:"RECS_CANDIDATE_POOL" default:"30"`
		CacheTTL      time.Duration `envconfig:"RECS_CACHE_TTL" default:"10m"`
	} `envconfig:""`

	Search struct {
		PageSize   int           `envconfig:"SEARCH_PAGE_SIZE" default:"6"`
		SessionTTL time.Duration `envconfig:"SEARCH_SESSION_TTL" default:"15m"`
	} `envconfig:""`

	Embeds struct {
		OEmbedInterval time.Duration `envconfig:"OEMBED_MIN_INTERVAL" default:"2s"`
	} `envconfig:""`

	Queues struct {
		Thumbnails string `envconfig:"THUMBNAIL_QUEUE_KEY" default:"thumbnail_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения, подхватывая локальный .env если он есть.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
