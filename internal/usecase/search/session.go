package search

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/metrics"
)

// overFetchFactor определяет, во сколько раз окно выборки в режиме поиска
// больше страницы: хранилище умеет только префиксный порядок по имени,
// произвольное вхождение фильтруется на клиенте.
const overFetchFactor = 5

const defaultPageSize = 6

type mode int

const (
	modeNone mode = iota
	modeRecent
	modeSearch
)

// Session хранит состояние одной поисковой выдачи с курсором: накопленные
// результаты, набор уже виденных ключей и позицию в хранилище. Каждый
// независимый просмотр должен владеть собственной сессией — набор виденных
// ключей между сессиями не разделяется.
type Session struct {
	index    domain.CollectionIndex
	viewerID string
	pageSize int
	log      zerolog.Logger

	// mu удерживается на всё время выборки: перекрывающиеся вызовы
	// сериализуются и не гонятся за курсор.
	mu      sync.Mutex
	mode    mode
	term    string
	results []domain.Collection
	seen    map[string]struct{}
	cursor  *domain.PageCursor
	hasMore bool
}

// NewSession создаёт сессию для зрителя.
func NewSession(index domain.CollectionIndex, viewerID string, pageSize int, logger zerolog.Logger) *Session {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Session{
		index:    index,
		viewerID: viewerID,
		pageSize: pageSize,
		log:      logger,
		seen:     make(map[string]struct{}),
	}
}

// Results возвращает копию накопленной выдачи.
func (s *Session) Results() []domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsLocked()
}

// HasMore сообщает, остались ли ещё страницы.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Reset сбрасывает состояние сессии.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(modeNone, "")
}

// FetchRecent загружает страницу свежих коллекций. При loadMore=false
// выдача начинается заново, иначе продолжается после курсора. Ошибка
// хранилища останавливает пагинацию и сохраняет последнюю удачную выдачу.
func (s *Session) FetchRecent(ctx context.Context, loadMore bool) []domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !loadMore || s.mode != modeRecent {
		s.resetLocked(modeRecent, "")
	} else if !s.hasMore {
		return s.resultsLocked()
	}
	metrics.IncSearchRequest("recent")

	page, err := s.index.PageByCreatedAt(ctx, s.cursor, s.pageSize)
	if err != nil {
		s.log.Error().Err(err).Msg("поиск: страница свежих не загрузилась")
		s.hasMore = false
		return s.resultsLocked()
	}

	for _, c := range page {
		key := c.CompositeKey()
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		if domain.HiddenFromViewer(c, s.viewerID) {
			continue
		}
		s.results = append(s.results, c)
	}

	if len(page) > 0 {
		last := page[len(page)-1]
		s.cursor = &domain.PageCursor{CreatedAt: last.CreatedAt, OwnerID: last.OwnerID, ID: last.ID}
	}
	// Неполная страница означает, что запрос исчерпан.
	s.hasMore = len(page) == s.pageSize
	return s.resultsLocked()
}

// SearchByName загружает страницу коллекций, имя которых содержит term без
// учёта регистра. Хранилище отдаёт окно в overFetchFactor страниц по имени,
// фильтрация и усечение до размера страницы выполняются здесь; hasMore —
// приближение по количеству отфильтрованных совпадений.
func (s *Session) SearchByName(ctx context.Context, term string, loadMore bool) []domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	term = strings.TrimSpace(term)
	if !loadMore || s.mode != modeSearch || s.term != term {
		s.resetLocked(modeSearch, term)
	} else if !s.hasMore {
		return s.resultsLocked()
	}
	if term == "" {
		s.hasMore = false
		return s.resultsLocked()
	}
	metrics.IncSearchRequest("by_name")

	window, err := s.index.PageByName(ctx, s.cursor, s.pageSize*overFetchFactor)
	if err != nil {
		s.log.Error().Err(err).Str("term", term).Msg("поиск: страница по имени не загрузилась")
		s.hasMore = false
		return s.resultsLocked()
	}

	needle := strings.ToLower(term)
	matched := 0
	appended := 0
	for _, c := range window {
		if !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		if domain.HiddenFromViewer(c, s.viewerID) {
			continue
		}
		key := c.CompositeKey()
		if _, ok := s.seen[key]; ok {
			continue
		}
		matched++
		if appended >= s.pageSize {
			continue
		}
		s.seen[key] = struct{}{}
		s.results = append(s.results, c)
		appended++
	}

	if len(window) > 0 {
		last := window[len(window)-1]
		s.cursor = &domain.PageCursor{Name: last.Name, OwnerID: last.OwnerID, ID: last.ID}
	}
	s.hasMore = matched > s.pageSize
	return s.resultsLocked()
}

func (s *Session) resetLocked(m mode, term string) {
	s.mode = m
	s.term = term
	s.results = nil
	s.seen = make(map[string]struct{})
	s.cursor = nil
	s.hasMore = false
}

func (s *Session) resultsLocked() []domain.Collection {
	out := make([]domain.Collection, len(s.results))
	copy(out, s.results)
	return out
}
