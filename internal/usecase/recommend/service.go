package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"collecti-backend/internal/adapters/recommender"
	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/metrics"
)

const defaultCandidatePool = 30

// Service реализует трёхступенчатый подбор рекомендаций: персональная
// выдача по ключевым словам, затем свежие коллекции, затем пустой список.
type Service struct {
	collections domain.CollectionRepo
	index       domain.CollectionIndex
	bookmarks   domain.BookmarkRepo
	scorer      domain.Scorer
	cache       domain.Cache
	cacheTTL    time.Duration
	poolSize    int
	log         zerolog.Logger
}

// NewService создаёт сервис рекомендаций. Кэш опционален.
func NewService(collections domain.CollectionRepo, index domain.CollectionIndex, bookmarks domain.BookmarkRepo, scorer domain.Scorer, cache domain.Cache, cacheTTL time.Duration, poolSize int, logger zerolog.Logger) *Service {
	if poolSize <= 0 {
		poolSize = defaultCandidatePool
	}
	return &Service{
		collections: collections,
		index:       index,
		bookmarks:   bookmarks,
		scorer:      scorer,
		cache:       cache,
		cacheTTL:    cacheTTL,
		poolSize:    poolSize,
		log:         logger,
	}
}

// CacheKey возвращает ключ кэша рекомендаций пользователя.
func CacheKey(viewerID string) string {
	return "recs:" + viewerID
}

// ForUser возвращает до max рекомендаций для зрителя. Ошибки наружу не
// выходят: рекомендации — вспомогательная выдача и не должны ломать
// вызывающего, худший исход — пустой список.
func (s *Service) ForUser(ctx context.Context, viewerID string, max int) []domain.RankedCollection {
	if max <= 0 || viewerID == "" {
		return nil
	}

	if cached, ok := s.fromCache(viewerID, max); ok {
		return cached
	}

	start := time.Now()
	ranked, err := s.personalized(ctx, viewerID, max)
	if err != nil {
		s.log.Error().Err(err).Str("viewer", viewerID).Msg("рекомендации: персональная ступень не удалась")
		ranked = nil
	}
	if len(ranked) > 0 {
		metrics.IncRecommendationTier("personalized")
	} else {
		ranked = s.fallbackRecent(ctx, viewerID, max)
	}
	metrics.RecommendationBuildSeconds.Observe(time.Since(start).Seconds())

	s.toCache(viewerID, ranked)
	return ranked
}

// Invalidate сбрасывает кэш рекомендаций пользователя. Вызывается при
// изменении его коллекций и закладок.
func (s *Service) Invalidate(viewerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(CacheKey(viewerID)); err != nil {
		s.log.Debug().Err(err).Str("viewer", viewerID).Msg("рекомендации: не удалось сбросить кэш")
	}
}

func (s *Service) personalized(ctx context.Context, viewerID string, max int) ([]domain.RankedCollection, error) {
	owned, err := s.collections.ListByOwner(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("коллекции пользователя: %w", err)
	}
	marks, err := s.bookmarks.ListBookmarks(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("закладки пользователя: %w", err)
	}

	keywords := recommender.BuildKeywordSet(owned, marks)
	if len(keywords) == 0 {
		// Недостаточно сигнала — не ошибка, сразу резервная выдача.
		return nil, nil
	}

	pool, err := s.index.ListCandidates(ctx, s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("пул кандидатов: %w", err)
	}

	known := make(map[string]struct{}, len(owned)+len(marks))
	for _, c := range owned {
		known[c.ID] = struct{}{}
	}
	for _, b := range marks {
		known[b.CollectionID] = struct{}{}
	}

	ranked := make([]domain.RankedCollection, 0, len(pool))
	for _, cand := range pool {
		if cand.OwnerID == viewerID {
			continue
		}
		if _, ok := known[cand.ID]; ok {
			continue
		}
		if domain.IsReservedName(cand.Name) || domain.IsReservedName(cand.ID) {
			continue
		}
		score := s.scorer.Score(cand, keywords)
		if score == 0 {
			continue
		}
		ranked = append(ranked, domain.RankedCollection{Collection: cand, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked, nil
}

func (s *Service) fallbackRecent(ctx context.Context, viewerID string, max int) []domain.RankedCollection {
	recent, err := s.index.ListRecent(ctx, viewerID, max)
	if err != nil {
		s.log.Error().Err(err).Str("viewer", viewerID).Msg("рекомендации: резервная выдача не удалась")
		metrics.IncRecommendationTier("empty")
		return nil
	}
	metrics.IncRecommendationTier("recent")
	out := make([]domain.RankedCollection, 0, len(recent))
	for _, c := range recent {
		if c.OwnerID == viewerID || domain.IsReservedName(c.Name) {
			continue
		}
		out = append(out, domain.RankedCollection{Collection: c})
	}
	return out
}

func (s *Service) fromCache(viewerID string, max int) ([]domain.RankedCollection, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(CacheKey(viewerID))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var cached []domain.RankedCollection
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	if len(cached) > max {
		cached = cached[:max]
	}
	return cached, true
}

func (s *Service) toCache(viewerID string, ranked []domain.RankedCollection) {
	if s.cache == nil || len(ranked) == 0 {
		return
	}
	data, err := json.Marshal(ranked)
	if err != nil {
		return
	}
	if err := s.cache.Set(CacheKey(viewerID), data, s.cacheTTL); err != nil {
		s.log.Debug().Err(err).Msg("рекомендации: не удалось записать кэш")
	}
}
