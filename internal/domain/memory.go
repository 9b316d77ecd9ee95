package domain

import "time"

// ConversationEntry is the stored history for one session/map pair.
type ConversationEntry struct {
	SessionID    string    `json:"session_id"`
	MapID        string    `json:"map_id"`
	Messages     []Message `json:"messages"`
	TokenCount   int       `json:"token_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// MemoryStats summarizes the state of the conversation store.
type MemoryStats struct {
	Sessions      int `json:"sessions"`
	TotalMessages int `json:"total_messages"`
	TotalTokens   int `json:"total_tokens"`
}

// ConversationStore is the interface for short-term conversation memory.
// Entries expire after a TTL measured from last access; implementations
// may cap per-entry message counts and total entry counts.
type ConversationStore interface {
	// Get returns the stored messages for a session/map pair. Expired
	// entries are treated as absent.
	Get(sessionID, mapID string) []Message

	// Append adds messages to a session/map pair, creating the entry if
	// missing and refreshing its last-access time.
	Append(sessionID, mapID string, messages ...Message)

	// Clear removes a single session/map entry, or every entry for the
	// session when mapID is empty.
	Clear(sessionID, mapID string)

	// Stats reports live (non-expired) sessions, messages and tokens.
	Stats() MemoryStats

	// Sweep removes expired entries and returns how many were dropped.
	Sweep() int
}
