package domain

import "time"

// Platform описывает источник сохранённого поста.
type Platform string

const (
	PlatformGallery   Platform = "gallery"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
	PlatformYouTube   Platform = "youtube"
)

// User описывает пользователя приложения.
type User struct {
	ID        string
	Email     string
	Username  string
	CreatedAt time.Time
}

// Collection представляет именованную подборку сохранённых постов.
// Идентификатор уникален в пределах владельца, не глобально.
type Collection struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	// Thumbnail — денормализованная копия миниатюры последнего поста.
	// Обновляется асинхронно воркером и может отставать от содержимого.
	Thumbnail string
	CreatedAt time.Time
	// Items материализуется не во всех выборках.
	Items []Post
}

// CompositeKey возвращает ключ дедупликации для выборок по всем владельцам.
func (c Collection) CompositeKey() string {
	return c.OwnerID + "_" + c.ID
}

// Post представляет один сохранённый элемент контента.
type Post struct {
	ID           string
	CollectionID string
	OwnerID      string
	Notes        string
	Tags         []string
	Platform     Platform
	Image        string
	Thumbnail    string
	SourceURL    string
	CreatedAt    time.Time
}

// Bookmark — закладка на чужую коллекцию. Хранится денормализованным
// снимком: отображаемые поля могут устареть относительно живой коллекции,
// сверка выполняется только явной операцией Refresh.
type Bookmark struct {
	UserID       string
	OwnerID      string
	CollectionID string
	Name         string
	Description  string
	ImageURL     string
	CreatedAt    time.Time
}

// CompositeKey возвращает ключ закладки в формате владелец_коллекция.
func (b Bookmark) CompositeKey() string {
	return b.OwnerID + "_" + b.CollectionID
}

// RankedCollection хранит кандидата рекомендаций с его оценкой.
type RankedCollection struct {
	Collection Collection `json:"collection"`
	Score      int        `json:"score"`
}
