package logging

import (
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one record kept for /api/logs.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Query selects buffered entries. Zero fields other than MinLevel, whose
// zero value is Info, match everything.
type Query struct {
	Module   string
	MinLevel slog.Level
	AfterSeq uint64
	Limit    int
}

func (q Query) match(e LogEntry) bool {
	if q.Module != "" && e.Module != q.Module {
		return false
	}
	if e.Seq <= q.AfterSeq {
		return false
	}
	lvl := parseLevel(e.Level)
	return lvl == nil || *lvl >= q.MinLevel
}

// RingBuffer keeps the most recent log entries. Entries are numbered in
// write order so clients can poll for what they have not seen.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
	seq     uint64
}

// NewRingBuffer creates a buffer holding at most capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{entries: make([]LogEntry, capacity)}
}

// Write stores entry, dropping the oldest one when full. It returns the
// sequence number assigned to the entry.
func (rb *RingBuffer) Write(entry LogEntry) uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	entry.Seq = rb.seq
	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
	return entry.Seq
}

// ReadAll returns every buffered entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Select(Query{MinLevel: slog.LevelDebug})
}

// Select returns the entries matching q, oldest first. With a limit only
// the newest matches are kept.
func (rb *RingBuffer) Select(q Query) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	rb.each(func(e LogEntry) {
		if q.match(e) {
			out = append(out, e)
		}
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

// LastSeq returns the sequence number of the newest entry, 0 when empty.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}

// each walks the entries oldest first (must hold lock).
func (rb *RingBuffer) each(fn func(LogEntry)) {
	if rb.full {
		for _, e := range rb.entries[rb.next:] {
			fn(e)
		}
	}
	for _, e := range rb.entries[:rb.next] {
		fn(e)
	}
}
