package usecase

import (
	"strings"
	"sync"
	"time"

	"mindhub/internal/domain"
)

// MemoryOptions configures the conversation store.
type MemoryOptions struct {
	TTL         time.Duration // expiry since last access
	MaxEntries  int           // total entry cap; oldest evicted beyond this
	MaxMessages int           // per-entry message cap before trimming
	KeepRecent  int           // messages kept when the cap is exceeded
}

// ConversationMemory is an in-memory conversation store with TTL expiry,
// per-entry message caps and LRU-style eviction. Safe for concurrent use.
type ConversationMemory struct {
	mu        sync.Mutex
	store     map[string]*domain.ConversationEntry
	opts      MemoryOptions
	estimator domain.TokenEstimator
	now       func() time.Time
}

// NewConversationMemory creates a store. Zero option fields get defaults:
// 30m TTL, 100 entries, 20 messages trimmed down to 10.
func NewConversationMemory(opts MemoryOptions, estimator domain.TokenEstimator) *ConversationMemory {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 100
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 20
	}
	if opts.KeepRecent <= 0 {
		opts.KeepRecent = 10
	}
	return &ConversationMemory{
		store:     make(map[string]*domain.ConversationEntry),
		opts:      opts,
		estimator: estimator,
		now:       time.Now,
	}
}

func memoryKey(sessionID, mapID string) string {
	return sessionID + ":" + mapID
}

// Get returns the stored history for a session/map pair, refreshing its
// last-access time. Expired entries are deleted and treated as absent.
func (m *ConversationMemory) Get(sessionID, mapID string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(sessionID, mapID)
	entry, ok := m.store[key]
	if !ok {
		return nil
	}

	now := m.now()
	if now.Sub(entry.LastAccessed) > m.opts.TTL {
		delete(m.store, key)
		return nil
	}

	entry.LastAccessed = now
	return entry.Messages
}

// Append adds messages to a session/map pair, creating the entry if
// missing. Long histories are trimmed to the most recent messages and
// the oldest entry is evicted when the store overflows.
func (m *ConversationMemory) Append(sessionID, mapID string, messages ...domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey(sessionID, mapID)
	now := m.now()

	entry, ok := m.store[key]
	if !ok {
		entry = &domain.ConversationEntry{
			SessionID: sessionID,
			MapID:     mapID,
		}
		m.store[key] = entry
	}

	entry.Messages = append(entry.Messages, messages...)
	entry.LastAccessed = now
	entry.TokenCount = m.estimator.Messages(entry.Messages)

	if len(entry.Messages) > m.opts.MaxMessages {
		keep := len(entry.Messages) - m.opts.KeepRecent
		entry.Messages = entry.Messages[keep:]
		entry.TokenCount = m.estimator.Messages(entry.Messages)
	}

	if len(m.store) > m.opts.MaxEntries {
		m.evictOldest()
	}
}

// Clear removes a single session/map entry, or every entry for the
// session when mapID is empty.
func (m *ConversationMemory) Clear(sessionID, mapID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mapID != "" {
		delete(m.store, memoryKey(sessionID, mapID))
		return
	}
	prefix := sessionID + ":"
	for key := range m.store {
		if strings.HasPrefix(key, prefix) {
			delete(m.store, key)
		}
	}
}

// Stats reports live session, message and token counts. Expired entries
// still present are excluded.
func (m *ConversationMemory) Stats() domain.MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var stats domain.MemoryStats
	for _, entry := range m.store {
		if now.Sub(entry.LastAccessed) > m.opts.TTL {
			continue
		}
		stats.Sessions++
		stats.TotalMessages += len(entry.Messages)
		stats.TotalTokens += entry.TokenCount
	}
	return stats
}

// Sweep removes expired entries and returns how many were dropped.
func (m *ConversationMemory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.store {
		if now.Sub(entry.LastAccessed) > m.opts.TTL {
			delete(m.store, key)
			removed++
		}
	}
	return removed
}

// evictOldest drops the least recently accessed entry. Caller holds m.mu.
func (m *ConversationMemory) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range m.store {
		if first || entry.LastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccessed
			first = false
		}
	}
	if oldestKey != "" {
		delete(m.store, oldestKey)
	}
}
