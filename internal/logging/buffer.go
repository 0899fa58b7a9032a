package logging

import (
	"sync"
	"time"
)

// LogEntry is one captured log record, kept so the HTTP API can serve
// recent output without consulting the journal.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EntryBuffer holds the most recent log entries up to a fixed capacity.
// Entries stay in chronological order; the oldest are dropped first.
type EntryBuffer struct {
	mu      sync.RWMutex
	cap     int
	entries []LogEntry
}

// NewEntryBuffer creates a buffer that retains at most capacity entries.
func NewEntryBuffer(capacity int) *EntryBuffer {
	return &EntryBuffer{
		cap:     capacity,
		entries: make([]LogEntry, 0, capacity),
	}
}

// Append records an entry, evicting the oldest one when full.
func (b *EntryBuffer) Append(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) < b.cap {
		b.entries = append(b.entries, entry)
		return
	}
	// Full. Shift in place; the buffer is small and appends dominate reads.
	copy(b.entries, b.entries[1:])
	b.entries[len(b.entries)-1] = entry
}

// Entries returns a copy of the retained entries, oldest first.
func (b *EntryBuffer) Entries() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.entries) == 0 {
		return nil
	}
	out := make([]LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of retained entries.
func (b *EntryBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
