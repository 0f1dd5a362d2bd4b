package collections

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
)

// stubStore реализует все три репозитория поверх карт в памяти.
type stubStore struct {
	collections map[string]domain.Collection
	posts       map[string]domain.Post
	bookmarks   map[string]domain.Bookmark
	getErr      error
}

func newStubStore() *stubStore {
	return &stubStore{
		collections: map[string]domain.Collection{},
		posts:       map[string]domain.Post{},
		bookmarks:   map[string]domain.Bookmark{},
	}
}

func colKey(ownerID, id string) string  { return ownerID + "_" + id }
func postKey(ownerID, id string) string { return ownerID + "_" + id }

func (s *stubStore) CreateCollection(_ context.Context, c domain.Collection) (domain.Collection, error) {
	s.collections[colKey(c.OwnerID, c.ID)] = c
	return c, nil
}

func (s *stubStore) GetCollection(_ context.Context, ownerID, id string) (domain.Collection, error) {
	if s.getErr != nil {
		return domain.Collection{}, s.getErr
	}
	c, ok := s.collections[colKey(ownerID, id)]
	if !ok {
		return domain.Collection{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *stubStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Collection, error) {
	var out []domain.Collection
	for _, c := range s.collections {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubStore) RenameCollection(_ context.Context, ownerID, id, name, description string) error {
	c, ok := s.collections[colKey(ownerID, id)]
	if !ok {
		return domain.ErrNotFound
	}
	c.Name = name
	c.Description = description
	s.collections[colKey(ownerID, id)] = c
	return nil
}

func (s *stubStore) DeleteCollection(_ context.Context, ownerID, id string) error {
	if _, ok := s.collections[colKey(ownerID, id)]; !ok {
		return domain.ErrNotFound
	}
	delete(s.collections, colKey(ownerID, id))
	for key, p := range s.posts {
		if p.OwnerID == ownerID && p.CollectionID == id {
			delete(s.posts, key)
		}
	}
	return nil
}

func (s *stubStore) UpdateThumbnail(_ context.Context, ownerID, id, thumbnail string) error {
	c, ok := s.collections[colKey(ownerID, id)]
	if !ok {
		return domain.ErrNotFound
	}
	c.Thumbnail = thumbnail
	s.collections[colKey(ownerID, id)] = c
	return nil
}

func (s *stubStore) CreatePost(_ context.Context, p domain.Post) (domain.Post, error) {
	s.posts[postKey(p.OwnerID, p.ID)] = p
	return p, nil
}

func (s *stubStore) GetPost(_ context.Context, ownerID, id string) (domain.Post, error) {
	p, ok := s.posts[postKey(ownerID, id)]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) ListByCollection(_ context.Context, ownerID, collectionID string) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range s.posts {
		if p.OwnerID == ownerID && p.CollectionID == collectionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) UpdatePost(_ context.Context, ownerID, id, notes string, tags []string) error {
	p, ok := s.posts[postKey(ownerID, id)]
	if !ok {
		return domain.ErrNotFound
	}
	p.Notes = notes
	p.Tags = tags
	s.posts[postKey(ownerID, id)] = p
	return nil
}

func (s *stubStore) DeletePost(_ context.Context, ownerID, id string) error {
	if _, ok := s.posts[postKey(ownerID, id)]; !ok {
		return domain.ErrNotFound
	}
	delete(s.posts, postKey(ownerID, id))
	return nil
}

func (s *stubStore) MovePost(_ context.Context, ownerID, id, toCollectionID string) error {
	p, ok := s.posts[postKey(ownerID, id)]
	if !ok {
		return domain.ErrNotFound
	}
	p.CollectionID = toCollectionID
	s.posts[postKey(ownerID, id)] = p
	return nil
}

func (s *stubStore) LatestInCollection(_ context.Context, ownerID, collectionID string) (domain.Post, error) {
	var latest domain.Post
	found := false
	for _, p := range s.posts {
		if p.OwnerID != ownerID || p.CollectionID != collectionID {
			continue
		}
		if !found || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
			found = true
		}
	}
	if !found {
		return domain.Post{}, domain.ErrNotFound
	}
	return latest, nil
}

func (s *stubStore) SaveBookmark(_ context.Context, b domain.Bookmark) error {
	s.bookmarks[b.UserID+"_"+b.CompositeKey()] = b
	return nil
}

func (s *stubStore) DeleteBookmark(_ context.Context, userID, ownerID, collectionID string) error {
	delete(s.bookmarks, userID+"_"+ownerID+"_"+collectionID)
	return nil
}

func (s *stubStore) ListBookmarks(_ context.Context, userID string) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	for _, b := range s.bookmarks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// stubQueue копит задачи в памяти; err имитирует недоступность брокера.
type stubQueue struct {
	jobs []domain.ThumbnailJob
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.ThumbnailJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(context.Context) (domain.ThumbnailJob, domain.ThumbnailAckFunc, error) {
	return domain.ThumbnailJob{}, nil, errors.New("не реализовано")
}

func newTestService(store *stubStore, queue *stubQueue) *Service {
	return NewService(store, store, store, queue, nil, nil, zerolog.Nop())
}

func TestEnsureDefaultIdempotent(t *testing.T) {
	store := newStubStore()
	service := newTestService(store, &stubQueue{})

	first, err := service.EnsureDefault(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if first.ID != domain.DefaultCollectionID || first.Name != domain.DefaultCollectionName {
		t.Fatalf("неверная корзина по умолчанию: %+v", first)
	}

	second, err := service.EnsureDefault(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("повторный вызов не должен пересоздавать корзину")
	}
	if len(store.collections) != 1 {
		t.Fatalf("ожидали одну коллекцию, получили %d", len(store.collections))
	}
}

func TestCreateRejectsReservedName(t *testing.T) {
	service := newTestService(newStubStore(), &stubQueue{})

	for _, name := range []string{"Unsorted", "unsorted", "  UNSORTED  "} {
		if _, err := service.Create(context.Background(), "user-1", name, ""); !errors.Is(err, ErrReservedName) {
			t.Fatalf("имя %q должно быть отклонено, получили %v", name, err)
		}
	}
	if _, err := service.Create(context.Background(), "user-1", "   ", ""); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("пустое имя должно быть отклонено, получили %v", err)
	}
}

func TestDefaultCollectionImmutable(t *testing.T) {
	store := newStubStore()
	service := newTestService(store, &stubQueue{})
	if _, err := service.EnsureDefault(context.Background(), "user-1"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if err := service.Rename(context.Background(), "user-1", domain.DefaultCollectionID, "Другое", ""); !errors.Is(err, ErrDefaultImmutable) {
		t.Fatalf("переименование корзины должно быть отклонено, получили %v", err)
	}
	if err := service.Delete(context.Background(), "user-1", domain.DefaultCollectionID); !errors.Is(err, ErrDefaultImmutable) {
		t.Fatalf("удаление корзины должно быть отклонено, получили %v", err)
	}
}

func TestRenameRejectsReservedName(t *testing.T) {
	store := newStubStore()
	service := newTestService(store, &stubQueue{})
	created, err := service.Create(context.Background(), "user-1", "Recipes", "")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if err := service.Rename(context.Background(), "user-1", created.ID, "unsorted", ""); !errors.Is(err, ErrReservedName) {
		t.Fatalf("переименование в зарезервированное имя должно быть отклонено, получили %v", err)
	}
}

func TestAddPostDefaultsAndEnqueuesThumbnail(t *testing.T) {
	store := newStubStore()
	queue := &stubQueue{}
	service := NewService(store, store, store, queue, func(string) domain.Platform { return domain.PlatformTikTok }, nil, zerolog.Nop())

	created, err := service.AddPost(context.Background(), domain.Post{
		OwnerID:   "user-1",
		SourceURL: "https://www.tiktok.com/@x/video/1",
		Tags:      []string{" Recipes ", "recipes", "", "Dinner"},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if created.CollectionID != domain.DefaultCollectionID {
		t.Fatalf("пост без коллекции должен попасть в корзину, получили %q", created.CollectionID)
	}
	if created.Platform != domain.PlatformTikTok {
		t.Fatalf("платформа должна выводиться из URL, получили %q", created.Platform)
	}
	if want := []string{"recipes", "dinner"}; !reflect.DeepEqual(created.Tags, want) {
		t.Fatalf("теги должны нормализоваться: ожидали %v, получили %v", want, created.Tags)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].Cause != domain.ThumbnailCausePostAdded {
		t.Fatalf("ожидали одну задачу пересчёта миниатюры, получили %+v", queue.jobs)
	}
}

func TestAddPostSurvivesQueueFailure(t *testing.T) {
	store := newStubStore()
	queue := &stubQueue{err: errors.New("брокер недоступен")}
	service := newTestService(store, queue)

	if _, err := service.AddPost(context.Background(), domain.Post{OwnerID: "user-1"}); err != nil {
		t.Fatalf("недоступная очередь не должна валить сохранение: %v", err)
	}
	if len(store.posts) != 1 {
		t.Fatalf("пост должен сохраниться")
	}
}

func TestMovePostEnqueuesBothCollections(t *testing.T) {
	store := newStubStore()
	queue := &stubQueue{}
	service := newTestService(store, queue)

	created, err := service.AddPost(context.Background(), domain.Post{OwnerID: "user-1", CollectionID: "src"})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	queue.jobs = nil

	if err := service.MovePost(context.Background(), "user-1", created.ID, "dst"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(queue.jobs) != 2 {
		t.Fatalf("ожидали задачи для обеих коллекций, получили %d", len(queue.jobs))
	}
	got := map[string]bool{}
	for _, job := range queue.jobs {
		got[job.CollectionID] = true
		if job.Cause != domain.ThumbnailCausePostMoved {
			t.Fatalf("неверная причина задачи: %s", job.Cause)
		}
	}
	if !got["src"] || !got["dst"] {
		t.Fatalf("задачи должны покрыть обе коллекции: %+v", got)
	}

	if err := service.MovePost(context.Background(), "user-1", created.ID, "dst"); err != nil {
		t.Fatalf("перенос в ту же коллекцию должен быть no-op: %v", err)
	}
	if len(queue.jobs) != 2 {
		t.Fatalf("перенос в ту же коллекцию не должен ставить задачи")
	}
}

func TestBookmarkRules(t *testing.T) {
	store := newStubStore()
	service := newTestService(store, &stubQueue{})
	store.collections[colKey("other", "c-1")] = domain.Collection{
		ID: "c-1", OwnerID: "other", Name: "Recipes", Description: "pasta", Thumbnail: "https://cdn/1.jpg",
	}
	store.collections[colKey("other", domain.DefaultCollectionID)] = domain.Collection{
		ID: domain.DefaultCollectionID, OwnerID: "other", Name: domain.DefaultCollectionName,
	}
	store.collections[colKey("viewer", "mine")] = domain.Collection{ID: "mine", OwnerID: "viewer", Name: "Mine"}

	if _, err := service.Bookmark(context.Background(), "viewer", "viewer", "mine"); !errors.Is(err, ErrOwnBookmark) {
		t.Fatalf("своя коллекция должна быть отклонена, получили %v", err)
	}
	if _, err := service.Bookmark(context.Background(), "viewer", "other", domain.DefaultCollectionID); !errors.Is(err, ErrBookmarkReserved) {
		t.Fatalf("чужая корзина должна быть отклонена, получили %v", err)
	}

	mark, err := service.Bookmark(context.Background(), "viewer", "other", "c-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if mark.Name != "Recipes" || mark.Description != "pasta" || mark.ImageURL != "https://cdn/1.jpg" {
		t.Fatalf("снимок должен копировать живые поля: %+v", mark)
	}
}

func TestRefreshBookmarksReconciles(t *testing.T) {
	store := newStubStore()
	service := newTestService(store, &stubQueue{})
	now := time.Now().UTC()

	store.collections[colKey("other", "c-1")] = domain.Collection{
		ID: "c-1", OwnerID: "other", Name: "Renamed", Thumbnail: "https://cdn/new.jpg",
	}
	store.bookmarks["viewer_other_c-1"] = domain.Bookmark{
		UserID: "viewer", OwnerID: "other", CollectionID: "c-1",
		Name: "Old name", ImageURL: "https://cdn/old.jpg", CreatedAt: now,
	}
	store.bookmarks["viewer_other_gone"] = domain.Bookmark{
		UserID: "viewer", OwnerID: "other", CollectionID: "gone", Name: "Deleted", CreatedAt: now,
	}

	fresh, err := service.RefreshBookmarks(context.Background(), "viewer")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("закладка на удалённую коллекцию должна исчезнуть, получили %d", len(fresh))
	}
	if fresh[0].Name != "Renamed" || fresh[0].ImageURL != "https://cdn/new.jpg" {
		t.Fatalf("снимок должен обновиться: %+v", fresh[0])
	}
	if _, ok := store.bookmarks["viewer_other_gone"]; ok {
		t.Fatalf("осиротевшая закладка должна удалиться из хранилища")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Food ", "food", "FOOD", "", "travel"})
	want := []string{"food", "travel"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ожидали %v, получили %v", want, got)
	}
}
