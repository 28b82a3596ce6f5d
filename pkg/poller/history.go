package poller

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/zaxchat/zax-backend/pkg/client"
)

// DefaultHistoryCap bounds the persisted session history.
const DefaultHistoryCap = 50

const historyTitleLimit = 40

// HistoryEntry is one remembered past session.
type HistoryEntry struct {
	SessionID string            `json:"session_id"`
	Title     string            `json:"title"`
	Messages  []*client.Message `json:"messages"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// HistoryCache is the client's bounded list of past sessions, most
// recent first. When full, the least recently updated entry is
// evicted. It serializes to JSON for cross-reload continuity.
type HistoryCache struct {
	mu      sync.Mutex
	cap     int
	order   []string // most recently updated first
	entries map[string]*HistoryEntry
}

// NewHistoryCache creates a cache holding at most cap sessions; cap <= 0
// uses DefaultHistoryCap.
func NewHistoryCache(cap int) *HistoryCache {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &HistoryCache{
		cap:     cap,
		entries: make(map[string]*HistoryEntry),
	}
}

// Put records the session's transcript, deriving the title from its
// first user message, and marks it most recent.
func (h *HistoryCache) Put(sessionID string, messages []*client.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.entries[sessionID]
	if !ok {
		entry = &HistoryEntry{SessionID: sessionID}
		h.entries[sessionID] = entry
	}
	entry.Messages = messages
	entry.Title = deriveTitle(messages)
	entry.UpdatedAt = time.Now()

	h.touch(sessionID)
	for len(h.order) > h.cap {
		oldest := h.order[len(h.order)-1]
		h.order = h.order[:len(h.order)-1]
		delete(h.entries, oldest)
	}
}

// Get returns the remembered session, if any.
func (h *HistoryCache) Get(sessionID string) (*HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.entries[sessionID]
	return entry, ok
}

// List returns the remembered sessions, most recent first.
func (h *HistoryCache) List() []*HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*HistoryEntry, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.entries[id])
	}
	return out
}

// Len returns the number of remembered sessions.
func (h *HistoryCache) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Save writes the cache as JSON.
func (h *HistoryCache) Save(w io.Writer) error {
	h.mu.Lock()
	entries := make([]*HistoryEntry, 0, len(h.order))
	for _, id := range h.order {
		entries = append(entries, h.entries[id])
	}
	h.mu.Unlock()
	return json.NewEncoder(w).Encode(entries)
}

// Load replaces the cache content from JSON written by Save. Entries
// beyond the cap are dropped, oldest first.
func (h *HistoryCache) Load(r io.Reader) error {
	var entries []*HistoryEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = h.order[:0]
	h.entries = make(map[string]*HistoryEntry)
	for _, entry := range entries {
		if len(h.order) >= h.cap {
			break
		}
		h.entries[entry.SessionID] = entry
		h.order = append(h.order, entry.SessionID)
	}
	return nil
}

// touch moves sessionID to the front of the recency order.
func (h *HistoryCache) touch(sessionID string) {
	for i, id := range h.order {
		if id == sessionID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.order = append([]string{sessionID}, h.order...)
}

// deriveTitle takes the first user message, trimmed to a short line.
// Truncation counts runes so a multi-byte character is never split.
func deriveTitle(messages []*client.Message) string {
	for _, msg := range messages {
		if msg.SenderType != "user" {
			continue
		}
		title := strings.TrimSpace(msg.Body)
		if runes := []rune(title); len(runes) > historyTitleLimit {
			title = string(runes[:historyTitleLimit]) + "..."
		}
		return title
	}
	return "New conversation"
}
