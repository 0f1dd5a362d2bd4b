package thumbs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
)

type stubCollections struct {
	thumbnails map[string]string
	updateErr  error
}

func (s *stubCollections) CreateCollection(_ context.Context, c domain.Collection) (domain.Collection, error) {
	return c, nil
}
func (s *stubCollections) GetCollection(context.Context, string, string) (domain.Collection, error) {
	return domain.Collection{}, domain.ErrNotFound
}
func (s *stubCollections) ListByOwner(context.Context, string) ([]domain.Collection, error) {
	return nil, nil
}
func (s *stubCollections) RenameCollection(context.Context, string, string, string, string) error {
	return nil
}
func (s *stubCollections) DeleteCollection(context.Context, string, string) error { return nil }

func (s *stubCollections) UpdateThumbnail(_ context.Context, ownerID, id, thumbnail string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.thumbnails == nil {
		s.thumbnails = map[string]string{}
	}
	s.thumbnails[ownerID+"_"+id] = thumbnail
	return nil
}

type stubPosts struct {
	latest    domain.Post
	latestErr error
}

func (s *stubPosts) CreatePost(_ context.Context, p domain.Post) (domain.Post, error) { return p, nil }
func (s *stubPosts) GetPost(context.Context, string, string) (domain.Post, error) {
	return domain.Post{}, domain.ErrNotFound
}
func (s *stubPosts) ListByCollection(context.Context, string, string) ([]domain.Post, error) {
	return nil, nil
}
func (s *stubPosts) UpdatePost(context.Context, string, string, string, []string) error { return nil }
func (s *stubPosts) DeletePost(context.Context, string, string) error                   { return nil }
func (s *stubPosts) MovePost(context.Context, string, string, string) error             { return nil }

func (s *stubPosts) LatestInCollection(context.Context, string, string) (domain.Post, error) {
	if s.latestErr != nil {
		return domain.Post{}, s.latestErr
	}
	return s.latest, nil
}

type stubResolver struct {
	url string
	err error
}

func (s *stubResolver) Resolve(context.Context, domain.Post) (string, error) {
	return s.url, s.err
}

func TestRefreshUsesLatestPost(t *testing.T) {
	collections := &stubCollections{}
	posts := &stubPosts{latest: domain.Post{ID: "p-1", OwnerID: "user-1", CollectionID: "c-1"}}
	service := NewService(collections, posts, &stubResolver{url: "https://cdn/thumb.jpg"}, zerolog.Nop())

	job := domain.ThumbnailJob{OwnerID: "user-1", CollectionID: "c-1", Cause: domain.ThumbnailCausePostAdded}
	if err := service.Refresh(context.Background(), job); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got := collections.thumbnails["user-1_c-1"]; got != "https://cdn/thumb.jpg" {
		t.Fatalf("миниатюра не сохранена: %q", got)
	}
}

func TestRefreshClearsThumbnailOfEmptyCollection(t *testing.T) {
	collections := &stubCollections{}
	posts := &stubPosts{latestErr: domain.ErrNotFound}
	service := NewService(collections, posts, &stubResolver{url: "https://cdn/ignored.jpg"}, zerolog.Nop())

	job := domain.ThumbnailJob{OwnerID: "user-1", CollectionID: "c-1", Cause: domain.ThumbnailCausePostDeleted}
	if err := service.Refresh(context.Background(), job); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got, ok := collections.thumbnails["user-1_c-1"]; !ok || got != "" {
		t.Fatalf("пустая коллекция должна получить пустую миниатюру, получили %q", got)
	}
}

func TestRefreshToleratesDeletedCollection(t *testing.T) {
	collections := &stubCollections{updateErr: domain.ErrNotFound}
	posts := &stubPosts{latestErr: domain.ErrNotFound}
	service := NewService(collections, posts, &stubResolver{}, zerolog.Nop())

	job := domain.ThumbnailJob{OwnerID: "user-1", CollectionID: "gone"}
	if err := service.Refresh(context.Background(), job); err != nil {
		t.Fatalf("удалённая коллекция не должна давать ошибку: %v", err)
	}
}

func TestRefreshPropagatesResolverError(t *testing.T) {
	collections := &stubCollections{}
	posts := &stubPosts{latest: domain.Post{ID: "p-1"}}
	service := NewService(collections, posts, &stubResolver{err: errors.New("oembed недоступен")}, zerolog.Nop())

	if err := service.Refresh(context.Background(), domain.ThumbnailJob{}); err == nil {
		t.Fatalf("ошибка резолвера должна пробрасываться")
	}
	if len(collections.thumbnails) != 0 {
		t.Fatalf("при ошибке миниатюра не должна меняться")
	}
}

// chanQueue отдаёт задачи из канала и фиксирует подтверждения.
type chanQueue struct {
	jobs chan domain.ThumbnailJob
	acks chan bool
}

func (q *chanQueue) Enqueue(_ context.Context, job domain.ThumbnailJob) error {
	q.jobs <- job
	return nil
}

func (q *chanQueue) Receive(ctx context.Context) (domain.ThumbnailJob, domain.ThumbnailAckFunc, error) {
	select {
	case <-ctx.Done():
		return domain.ThumbnailJob{}, nil, ctx.Err()
	case job := <-q.jobs:
		return job, func(success bool) error {
			q.acks <- success
			return nil
		}, nil
	}
}

func TestRunProcessesAndAcks(t *testing.T) {
	collections := &stubCollections{}
	posts := &stubPosts{latest: domain.Post{ID: "p-1"}}
	service := NewService(collections, posts, &stubResolver{url: "https://cdn/t.jpg"}, zerolog.Nop())

	queue := &chanQueue{jobs: make(chan domain.ThumbnailJob, 1), acks: make(chan bool, 1)}
	queue.jobs <- domain.ThumbnailJob{OwnerID: "user-1", CollectionID: "c-1"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = service.Run(ctx, queue)
		close(done)
	}()

	select {
	case ok := <-queue.acks:
		if !ok {
			t.Fatalf("успешная задача должна подтверждаться")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("задача не обработана вовремя")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("воркер не остановился по отмене контекста")
	}
}
