package recommender

import (
	"strings"

	"collecti-backend/internal/domain"
)

// Веса — настроечные константы, а не контракт: наблюдаемое поведение
// фиксируют только тесты ранжирования.
const (
	tokenMatchScore = 2
	nameBonusScore  = 3
)

// KeywordScorer применяет эвристический скоринг по пересечению подстрок.
type KeywordScorer struct{}

var _ domain.Scorer = (*KeywordScorer)(nil)

// NewKeywordScorer создаёт скорер.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Score оценивает кандидата. За каждое ключевое слово начисляется
// tokenMatchScore, если хоть один токен имени или описания содержит его
// как подстроку либо наоборот, и дополнительно nameBonusScore, если слово
// входит в имя целиком как подстрока. Бонусы складываются, предела нет.
// Ноль означает отсутствие связи: такой кандидат в выдачу не попадает.
func (s *KeywordScorer) Score(c domain.Collection, keywords []string) int {
	name := strings.ToLower(c.Name)
	tokens := strings.Fields(name + " " + strings.ToLower(c.Description))
	if len(tokens) == 0 || len(keywords) == 0 {
		return 0
	}

	total := 0
	for _, kw := range keywords {
		for _, token := range tokens {
			if strings.Contains(token, kw) || strings.Contains(kw, token) {
				total += tokenMatchScore
				break
			}
		}
		if strings.Contains(name, kw) {
			total += nameBonusScore
		}
	}
	return total
}
