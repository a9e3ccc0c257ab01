// Package vbibuf holds the shared acquisition buffer handle: the state the
// control path and the capture pipeline exchange without direct calls.
package vbibuf

import (
	"sync/atomic"
	"time"
)

// Buffer is shared between the acquisition controller, the acquisition
// goroutine and the consumers of captured data. All methods are safe for
// concurrent use.
type Buffer struct {
	hasFailed  atomic.Bool
	fields     atomic.Uint64
	lines      atomic.Uint64
	lastFieldN atomic.Int64 // unix nanos of the last committed field
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// HasFailed reports whether acquisition is no longer valid.
func (b *Buffer) HasFailed() bool {
	return b.hasFailed.Load()
}

// SetFailed sets or clears the failure flag.
func (b *Buffer) SetFailed(failed bool) {
	b.hasFailed.Store(failed)
}

// CommitField records one captured field carrying the given number of VBI lines.
func (b *Buffer) CommitField(lines int) {
	b.fields.Add(1)
	if lines > 0 {
		b.lines.Add(uint64(lines))
	}
	b.lastFieldN.Store(time.Now().UnixNano())
}

// Fields returns the number of fields captured since the buffer was created.
func (b *Buffer) Fields() uint64 {
	return b.fields.Load()
}

// Lines returns the number of VBI lines captured since the buffer was created.
func (b *Buffer) Lines() uint64 {
	return b.lines.Load()
}

// LastField returns the time of the most recent field, or zero if none.
func (b *Buffer) LastField() time.Time {
	n := b.lastFieldN.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
