package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
)

var (
	// ErrEmptyName возвращается при попытке создать коллекцию без имени.
	ErrEmptyName = errors.New("имя коллекции не задано")
	// ErrReservedName возвращается при попытке занять зарезервированное имя.
	ErrReservedName = errors.New("имя зарезервировано за корзиной по умолчанию")
	// ErrDefaultImmutable возвращается при попытке изменить корзину по умолчанию.
	ErrDefaultImmutable = errors.New("корзину по умолчанию нельзя переименовать или удалить")
	// ErrOwnBookmark возвращается при попытке добавить в закладки свою коллекцию.
	ErrOwnBookmark = errors.New("нельзя добавить в закладки собственную коллекцию")
	// ErrBookmarkReserved возвращается при попытке добавить в закладки чужую корзину.
	ErrBookmarkReserved = errors.New("корзина по умолчанию недоступна для закладок")
)

// PlatformDetector определяет платформу поста по URL источника.
type PlatformDetector func(sourceURL string) domain.Platform

// Invalidator сбрасывает производные кэши пользователя после мутаций.
type Invalidator interface {
	Invalidate(viewerID string)
}

// Service реализует жизненный цикл коллекций, постов и закладок.
type Service struct {
	collections domain.CollectionRepo
	posts       domain.PostRepo
	bookmarks   domain.BookmarkRepo
	queue       domain.ThumbnailQueue
	detect      PlatformDetector
	invalidator Invalidator
	log         zerolog.Logger
}

// NewService создаёт сервис коллекций. Очередь и инвалидатор опциональны.
func NewService(collections domain.CollectionRepo, posts domain.PostRepo, bookmarks domain.BookmarkRepo, queue domain.ThumbnailQueue, detect PlatformDetector, invalidator Invalidator, logger zerolog.Logger) *Service {
	return &Service{
		collections: collections,
		posts:       posts,
		bookmarks:   bookmarks,
		queue:       queue,
		detect:      detect,
		invalidator: invalidator,
		log:         logger,
	}
}

// EnsureDefault создаёт корзину по умолчанию, если её ещё нет.
// Вызывается при регистрации; идентификатор фиксирован, поэтому на
// пользователя существует не более одной корзины.
func (s *Service) EnsureDefault(ctx context.Context, ownerID string) (domain.Collection, error) {
	existing, err := s.collections.GetCollection(ctx, ownerID, domain.DefaultCollectionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Collection{}, fmt.Errorf("проверка корзины по умолчанию: %w", err)
	}
	created, err := s.collections.CreateCollection(ctx, domain.Collection{
		ID:        domain.DefaultCollectionID,
		OwnerID:   ownerID,
		Name:      domain.DefaultCollectionName,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Collection{}, fmt.Errorf("создание корзины по умолчанию: %w", err)
	}
	return created, nil
}

// Create создаёт коллекцию. Зарезервированное имя занять нельзя.
func (s *Service) Create(ctx context.Context, ownerID, name, description string) (domain.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Collection{}, ErrEmptyName
	}
	if domain.IsReservedName(name) {
		return domain.Collection{}, ErrReservedName
	}
	created, err := s.collections.CreateCollection(ctx, domain.Collection{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.Collection{}, fmt.Errorf("создание коллекции: %w", err)
	}
	s.invalidate(ownerID)
	return created, nil
}

// Rename меняет имя и описание коллекции. Корзина по умолчанию неизменяема,
// переименоваться в зарезервированное имя нельзя.
func (s *Service) Rename(ctx context.Context, ownerID, id, name, description string) error {
	if id == domain.DefaultCollectionID {
		return ErrDefaultImmutable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if domain.IsReservedName(name) {
		return ErrReservedName
	}
	if err := s.collections.RenameCollection(ctx, ownerID, id, name, strings.TrimSpace(description)); err != nil {
		return fmt.Errorf("переименование коллекции: %w", err)
	}
	s.invalidate(ownerID)
	return nil
}

// Delete удаляет коллекцию вместе с постами. Корзину по умолчанию удалить нельзя.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if id == domain.DefaultCollectionID {
		return ErrDefaultImmutable
	}
	if err := s.collections.DeleteCollection(ctx, ownerID, id); err != nil {
		return fmt.Errorf("удаление коллекции: %w", err)
	}
	s.invalidate(ownerID)
	return nil
}

// List возвращает коллекции владельца.
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	return s.collections.ListByOwner(ctx, ownerID)
}

// Get возвращает коллекцию с материализованными постами.
func (s *Service) Get(ctx context.Context, ownerID, id string) (domain.Collection, error) {
	col, err := s.collections.GetCollection(ctx, ownerID, id)
	if err != nil {
		return domain.Collection{}, err
	}
	items, err := s.posts.ListByCollection(ctx, ownerID, id)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("посты коллекции: %w", err)
	}
	col.Items = items
	return col, nil
}

// AddPost сохраняет пост в коллекцию. Платформа выводится из URL источника,
// если не задана явно; теги нормализуются. Пересчёт миниатюры коллекции
// ставится в очередь и не блокирует сохранение.
func (s *Service) AddPost(ctx context.Context, post domain.Post) (domain.Post, error) {
	if post.CollectionID == "" {
		post.CollectionID = domain.DefaultCollectionID
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Platform == "" {
		post.Platform = s.detectPlatform(post.SourceURL)
	}
	post.Tags = NormalizeTags(post.Tags)
	post.CreatedAt = time.Now().UTC()

	created, err := s.posts.CreatePost(ctx, post)
	if err != nil {
		return domain.Post{}, fmt.Errorf("сохранение поста: %w", err)
	}
	s.enqueueThumbnail(ctx, created.OwnerID, created.CollectionID, domain.ThumbnailCausePostAdded)
	return created, nil
}

// UpdatePost меняет заметки и теги поста: остальные поля неизменяемы.
func (s *Service) UpdatePost(ctx context.Context, ownerID, id, notes string, tags []string) error {
	if err := s.posts.UpdatePost(ctx, ownerID, id, notes, NormalizeTags(tags)); err != nil {
		return fmt.Errorf("обновление поста: %w", err)
	}
	return nil
}

// DeletePost удаляет пост и ставит пересчёт миниатюры коллекции.
func (s *Service) DeletePost(ctx context.Context, ownerID, id string) error {
	post, err := s.posts.GetPost(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, ownerID, id); err != nil {
		return fmt.Errorf("удаление поста: %w", err)
	}
	s.enqueueThumbnail(ctx, ownerID, post.CollectionID, domain.ThumbnailCausePostDeleted)
	return nil
}

// MovePost переносит пост в другую коллекцию и ставит пересчёт миниатюр обеих.
func (s *Service) MovePost(ctx context.Context, ownerID, id, toCollectionID string) error {
	post, err := s.posts.GetPost(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if post.CollectionID == toCollectionID {
		return nil
	}
	if err := s.posts.MovePost(ctx, ownerID, id, toCollectionID); err != nil {
		return fmt.Errorf("перенос поста: %w", err)
	}
	s.enqueueThumbnail(ctx, ownerID, post.CollectionID, domain.ThumbnailCausePostMoved)
	s.enqueueThumbnail(ctx, ownerID, toCollectionID, domain.ThumbnailCausePostMoved)
	return nil
}

// Bookmark сохраняет закладку на чужую коллекцию денормализованным снимком.
func (s *Service) Bookmark(ctx context.Context, viewerID, ownerID, collectionID string) (domain.Bookmark, error) {
	if ownerID == viewerID {
		return domain.Bookmark{}, ErrOwnBookmark
	}
	live, err := s.collections.GetCollection(ctx, ownerID, collectionID)
	if err != nil {
		return domain.Bookmark{}, err
	}
	if domain.IsReservedName(live.Name) {
		return domain.Bookmark{}, ErrBookmarkReserved
	}
	bookmark := domain.Bookmark{
		UserID:       viewerID,
		OwnerID:      live.OwnerID,
		CollectionID: live.ID,
		Name:         live.Name,
		Description:  live.Description,
		ImageURL:     live.Thumbnail,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.bookmarks.SaveBookmark(ctx, bookmark); err != nil {
		return domain.Bookmark{}, fmt.Errorf("сохранение закладки: %w", err)
	}
	s.invalidate(viewerID)
	return bookmark, nil
}

// Unbookmark удаляет закладку.
func (s *Service) Unbookmark(ctx context.Context, viewerID, ownerID, collectionID string) error {
	if err := s.bookmarks.DeleteBookmark(ctx, viewerID, ownerID, collectionID); err != nil {
		return fmt.Errorf("удаление закладки: %w", err)
	}
	s.invalidate(viewerID)
	return nil
}

// ListBookmarks возвращает закладки пользователя как есть: снимки могут
// отставать от живых коллекций до явного RefreshBookmarks.
func (s *Service) ListBookmarks(ctx context.Context, viewerID string) ([]domain.Bookmark, error) {
	return s.bookmarks.ListBookmarks(ctx, viewerID)
}

// RefreshBookmarks сверяет снимки закладок с живыми коллекциями: обновляет
// устаревшие поля и удаляет закладки на исчезнувшие коллекции. Возвращает
// актуальный список.
func (s *Service) RefreshBookmarks(ctx context.Context, viewerID string) ([]domain.Bookmark, error) {
	marks, err := s.bookmarks.ListBookmarks(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("закладки пользователя: %w", err)
	}
	fresh := make([]domain.Bookmark, 0, len(marks))
	for _, mark := range marks {
		live, err := s.collections.GetCollection(ctx, mark.OwnerID, mark.CollectionID)
		if errors.Is(err, domain.ErrNotFound) {
			if err := s.bookmarks.DeleteBookmark(ctx, viewerID, mark.OwnerID, mark.CollectionID); err != nil {
				s.log.Error().Err(err).Str("collection", mark.CollectionID).Msg("закладки: не удалось удалить осиротевшую")
			}
			continue
		}
		if err != nil {
			// Сверка не критична: оставляем прежний снимок.
			s.log.Error().Err(err).Str("collection", mark.CollectionID).Msg("закладки: сверка не удалась")
			fresh = append(fresh, mark)
			continue
		}
		if mark.Name != live.Name || mark.Description != live.Description || mark.ImageURL != live.Thumbnail {
			mark.Name = live.Name
			mark.Description = live.Description
			mark.ImageURL = live.Thumbnail
			if err := s.bookmarks.SaveBookmark(ctx, mark); err != nil {
				s.log.Error().Err(err).Str("collection", mark.CollectionID).Msg("закладки: не удалось обновить снимок")
			}
		}
		fresh = append(fresh, mark)
	}
	return fresh, nil
}

// NormalizeTags удаляет пустые и дублирующиеся теги, приводя их к нижнему
// регистру и сохраняя порядок.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

func (s *Service) detectPlatform(sourceURL string) domain.Platform {
	if s.detect == nil {
		return domain.PlatformGallery
	}
	return s.detect(sourceURL)
}

func (s *Service) enqueueThumbnail(ctx context.Context, ownerID, collectionID string, cause domain.ThumbnailJobCause) {
	if s.queue == nil {
		return
	}
	job := domain.ThumbnailJob{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		CollectionID: collectionID,
		Cause:        cause,
		RequestedAt:  time.Now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// Миниатюра — денормализованное поле, мутацию из-за неё не валим.
		s.log.Error().Err(err).Str("collection", collectionID).Msg("коллекции: не удалось поставить пересчёт миниатюры")
	}
}

func (s *Service) invalidate(viewerID string) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.Invalidate(viewerID)
}
