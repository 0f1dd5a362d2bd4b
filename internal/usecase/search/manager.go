package search

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
)

// Manager выдаёт поисковые сессии по идентификатору клиента. Каждый
// независимый просмотр (виджет, вкладка) обязан использовать свой
// идентификатор: сессии не делят состояние между собой. Неактивные
// сессии вычищаются по TTL.
type Manager struct {
	index    domain.CollectionIndex
	pageSize int
	ttl      time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session  *Session
	lastUsed time.Time
}

// NewManager создаёт менеджер сессий.
func NewManager(index domain.CollectionIndex, pageSize int, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		index:    index,
		pageSize: pageSize,
		ttl:      ttl,
		log:      logger,
		sessions: make(map[string]*managedSession),
	}
}

// Session возвращает сессию по ключу, создавая её при первом обращении.
// Ключ включает зрителя, поэтому чужую сессию получить нельзя.
func (m *Manager) Session(viewerID, sessionID string) *Session {
	key := viewerID + "/" + sessionID

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	if entry, ok := m.sessions[key]; ok {
		entry.lastUsed = time.Now()
		return entry.session
	}
	session := NewSession(m.index, viewerID, m.pageSize, m.log.With().Str("session", sessionID).Logger())
	m.sessions[key] = &managedSession{session: session, lastUsed: time.Now()}
	return session
}

// Drop удаляет сессию.
func (m *Manager) Drop(viewerID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, viewerID+"/"+sessionID)
}

func (m *Manager) sweepLocked() {
	deadline := time.Now().Add(-m.ttl)
	for key, entry := range m.sessions {
		if entry.lastUsed.Before(deadline) {
			delete(m.sessions, key)
		}
	}
}
