package logging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

const journalIdentifier = "vbinode"

// JournalHandler sends records to the systemd journal. Attributes become
// journal fields, so `journalctl VBINODE_MODULE=acq CARD_BUS=3` works.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []boundAttr
	groups []string
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	flat := make(map[string]any)
	for _, b := range h.attrs {
		flattenAttr(flat, b.groups, b.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(flat, h.groups, a)
		return true
	})

	fields := map[string]string{"SYSLOG_IDENTIFIER": journalIdentifier}
	for key, value := range flat {
		name := journalField(key)
		if name == "" {
			continue
		}
		if name == "MODULE" {
			name = "VBINODE_MODULE"
		}
		fields[name] = fmt.Sprint(value)
	}

	return journal.Send(r.Message, journalPriority(r.Level), fields)
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := slices.Clone(h.attrs)
	for _, a := range attrs {
		bound = append(bound, boundAttr{groups: h.groups, attr: a})
	}
	return &JournalHandler{level: h.level, attrs: bound, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{level: h.level, attrs: h.attrs, groups: append(slices.Clip(h.groups), name)}
}

// journalField turns a flattened attribute key into a journal field name.
// Journal fields are upper case letters, digits and underscores and must
// not start with an underscore or a digit.
func journalField(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	name = strings.TrimLeft(name, "_0123456789")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// IsJournalAvailable reports whether the journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
