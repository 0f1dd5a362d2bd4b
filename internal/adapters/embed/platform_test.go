package embed

import (
	"testing"

	"collecti-backend/internal/domain"
)

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		url  string
		want domain.Platform
	}{
		{"https://www.instagram.com/p/abc/", domain.PlatformInstagram},
		{"https://instagram.com/reel/xyz", domain.PlatformInstagram},
		{"https://www.tiktok.com/@user/video/123", domain.PlatformTikTok},
		{"https://vm.tiktok.com/ZM123/", domain.PlatformTikTok},
		{"https://www.pinterest.com/pin/456/", domain.PlatformPinterest},
		{"https://pinterest.co.uk/pin/456/", domain.PlatformPinterest},
		{"https://pin.it/abc", domain.PlatformPinterest},
		{"https://www.youtube.com/watch?v=abc", domain.PlatformYouTube},
		{"https://youtu.be/abc", domain.PlatformYouTube},
		{"https://example.com/image.jpg", domain.PlatformGallery},
		{"", domain.PlatformGallery},
		{"не урл", domain.PlatformGallery},
	}

	for _, tc := range cases {
		if got := DetectPlatform(tc.url); got != tc.want {
			t.Fatalf("url %q: ожидали %q, получили %q", tc.url, tc.want, got)
		}
	}
}
