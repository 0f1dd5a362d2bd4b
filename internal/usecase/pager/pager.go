package pager

import (
	"context"
	"sync"
	"time"
)

const defaultPageSize = 10

// Pager отдаёт растущий префикс уже загруженного списка: хранилище не
// трогается, окно расширяется по запросу. Повторный LoadMore во время
// текущего игнорируется.
type Pager[T any] struct {
	mu       sync.Mutex
	items    []T
	pageSize int
	visible  int
	loading  bool
	// delay сглаживает расширение окна для UI; в тестах ноль.
	delay time.Duration
}

// New создаёт пейджер с первой открытой страницей.
func New[T any](items []T, pageSize int, delay time.Duration) *Pager[T] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	p := &Pager[T]{items: items, pageSize: pageSize, delay: delay}
	p.visible = minInt(pageSize, len(items))
	return p
}

// Items возвращает копию видимого окна.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, p.visible)
	copy(out, p.items[:p.visible])
	return out
}

// HasMore сообщает, остались ли скрытые элементы.
func (p *Pager[T]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible < len(p.items)
}

// Loading сообщает, идёт ли расширение окна.
func (p *Pager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// LoadMore расширяет окно на размер страницы. Возвращает false, если
// расширение уже идёт, элементы кончились или контекст отменён.
func (p *Pager[T]) LoadMore(ctx context.Context) bool {
	p.mu.Lock()
	if p.loading || p.visible >= len(p.items) {
		p.mu.Unlock()
		return false
	}
	p.loading = true
	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.loading = false
			p.mu.Unlock()
			return false
		case <-time.After(delay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	p.visible = minInt(p.visible+p.pageSize, len(p.items))
	return true
}

// Reset возвращает окно к первой странице.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = minInt(p.pageSize, len(p.items))
}

// Replace подменяет данные и сбрасывает окно.
func (p *Pager[T]) Replace(items []T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = items
	p.visible = minInt(p.pageSize, len(p.items))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
