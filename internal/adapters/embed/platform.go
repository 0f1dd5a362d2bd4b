package embed

import (
	"net/url"
	"strings"

	"collecti-backend/internal/domain"
)

// DetectPlatform выводит платформу поста из URL источника по хосту.
// Неизвестные и пустые URL считаются загруженными напрямую.
func DetectPlatform(rawURL string) domain.Platform {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return domain.PlatformGallery
	}
	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))

	switch {
	case host == "instagram.com" || strings.HasSuffix(host, ".instagram.com"):
		return domain.PlatformInstagram
	case host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com"):
		return domain.PlatformTikTok
	case host == "pinterest.com" || strings.HasSuffix(host, ".pinterest.com") ||
		strings.HasPrefix(host, "pinterest.") || host == "pin.it":
		return domain.PlatformPinterest
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtu.be":
		return domain.PlatformYouTube
	default:
		return domain.PlatformGallery
	}
}
