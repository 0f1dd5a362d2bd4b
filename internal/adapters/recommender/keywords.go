package recommender

import (
	"regexp"
	"sort"
	"strings"

	"collecti-backend/internal/domain"
)

const minKeywordLen = 3

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// BuildKeywordSet собирает набор ключевых слов из коллекций пользователя
// и его закладок: имена, описания и теги вложенных постов. Результат —
// уникальные слова в нижнем регистре, отсортированные для детерминизма.
func BuildKeywordSet(owned []domain.Collection, bookmarked []domain.Bookmark) []string {
	seen := make(map[string]struct{})

	addText := func(text string) {
		text = nonWord.ReplaceAllString(strings.ToLower(text), " ")
		for _, token := range strings.Fields(text) {
			if len([]rune(token)) < minKeywordLen {
				continue
			}
			seen[token] = struct{}{}
		}
	}

	for _, c := range owned {
		addText(c.Name)
		addText(c.Description)
		for _, item := range c.Items {
			for _, tag := range item.Tags {
				tag = strings.ToLower(strings.TrimSpace(tag))
				if tag == "" {
					continue
				}
				seen[tag] = struct{}{}
			}
		}
	}
	for _, b := range bookmarked {
		addText(b.Name)
		addText(b.Description)
	}

	keywords := make([]string, 0, len(seen))
	for kw := range seen {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	return keywords
}
