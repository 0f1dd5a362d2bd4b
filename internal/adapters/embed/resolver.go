package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/metrics"
)

const requestTimeout = 10 * time.Second

// Resolver подбирает миниатюру поста. Для галерейных постов берётся
// собственное изображение, для встраиваемых платформ — миниатюра поста
// либо oEmbed провайдера. Запросы к провайдерам ограничены по частоте.
type Resolver struct {
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewResolver создаёт резолвер. interval задаёт минимальную паузу между
// запросами к oEmbed провайдерам.
func NewResolver(interval time.Duration, logger zerolog.Logger) *Resolver {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Resolver{
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		log:     logger,
	}
}

// Resolve возвращает URL миниатюры поста или пустую строку, если миниатюру
// получить неоткуда.
func (r *Resolver) Resolve(ctx context.Context, post domain.Post) (string, error) {
	if post.Platform == domain.PlatformGallery || post.Platform == "" {
		if post.Image != "" {
			return post.Image, nil
		}
		return post.Thumbnail, nil
	}

	if post.Thumbnail != "" {
		return post.Thumbnail, nil
	}

	endpoint := oembedEndpoint(post.Platform, post.SourceURL)
	if endpoint == "" {
		// Instagram и Pinterest закрыли публичный oEmbed, падаем на
		// изображение самого поста.
		return post.Image, nil
	}

	thumbnail, err := r.fetchOEmbed(ctx, post.Platform, endpoint)
	if err != nil {
		return "", fmt.Errorf("oembed %s: %w", post.Platform, err)
	}
	if thumbnail == "" {
		return post.Image, nil
	}
	return thumbnail, nil
}

func oembedEndpoint(platform domain.Platform, sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	switch platform {
	case domain.PlatformYouTube:
		return "https://www.youtube.com/oembed?format=json&url=" + url.QueryEscape(sourceURL)
	case domain.PlatformTikTok:
		return "https://www.tiktok.com/oembed?url=" + url.QueryEscape(sourceURL)
	default:
		return ""
	}
}

func (r *Resolver) fetchOEmbed(ctx context.Context, platform domain.Platform, endpoint string) (thumbnail string, err error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ожидание лимитера: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("oembed", "fetch", string(platform), start, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("создание запроса: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос провайдеру: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("провайдер ответил статусом %d", resp.StatusCode)
	}

	var payload struct {
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("разбор ответа: %w", err)
	}
	return payload.ThumbnailURL, nil
}
