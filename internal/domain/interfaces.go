package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, если запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// CollectionRepo управляет коллекциями одного владельца.
type CollectionRepo interface {
	CreateCollection(ctx context.Context, c Collection) (Collection, error)
	GetCollection(ctx context.Context, ownerID, id string) (Collection, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Collection, error)
	RenameCollection(ctx context.Context, ownerID, id, name, description string) error
	// DeleteCollection удаляет коллекцию вместе с её постами.
	DeleteCollection(ctx context.Context, ownerID, id string) error
	UpdateThumbnail(ctx context.Context, ownerID, id, thumbnail string) error
}

// CollectionIndex читает коллекции по всем владельцам сразу.
type CollectionIndex interface {
	// ListCandidates возвращает ограниченный пул кандидатов, упорядоченный по имени.
	ListCandidates(ctx context.Context, limit int) ([]Collection, error)
	// ListRecent возвращает свежие коллекции без собственных и зарезервированных.
	ListRecent(ctx context.Context, excludeOwner string, limit int) ([]Collection, error)
	// PageByCreatedAt возвращает страницу по убыванию даты создания начиная после курсора.
	PageByCreatedAt(ctx context.Context, after *PageCursor, limit int) ([]Collection, error)
	// PageByName возвращает страницу по возрастанию имени начиная после курсора.
	PageByName(ctx context.Context, after *PageCursor, limit int) ([]Collection, error)
}

// PostRepo управляет постами.
type PostRepo interface {
	CreatePost(ctx context.Context, p Post) (Post, error)
	GetPost(ctx context.Context, ownerID, id string) (Post, error)
	ListByCollection(ctx context.Context, ownerID, collectionID string) ([]Post, error)
	// UpdatePost меняет только заметки и теги: остальные поля неизменяемы.
	UpdatePost(ctx context.Context, ownerID, id, notes string, tags []string) error
	DeletePost(ctx context.Context, ownerID, id string) error
	MovePost(ctx context.Context, ownerID, id, toCollectionID string) error
	// LatestInCollection возвращает самый свежий пост коллекции или ErrNotFound.
	LatestInCollection(ctx context.Context, ownerID, collectionID string) (Post, error)
}

// BookmarkRepo управляет закладками на чужие коллекции.
type BookmarkRepo interface {
	// SaveBookmark создаёт или перезаписывает снимок закладки.
	SaveBookmark(ctx context.Context, b Bookmark) error
	DeleteBookmark(ctx context.Context, userID, ownerID, collectionID string) error
	ListBookmarks(ctx context.Context, userID string) ([]Bookmark, error)
}

// Scorer оценивает кандидата против набора ключевых слов пользователя.
type Scorer interface {
	Score(c Collection, keywords []string) int
}

// ThumbnailResolver подбирает URL миниатюры для поста.
type ThumbnailResolver interface {
	Resolve(ctx context.Context, post Post) (string, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Del(key string) error
}
