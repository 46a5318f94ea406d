package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// LineHandler writes records as
//
//	[2006-01-02 15:04:05] env.LEVEL: message {"key":"value"}
//
// which is the format the log viewer parses.
type LineHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	env    string
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func NewLineHandler(w io.Writer, env string, level slog.Leveler) *LineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LineHandler{mu: &sync.Mutex{}, w: w, env: env, level: level}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	ctxMap := make(map[string]any)
	for _, a := range h.attrs {
		addAttr(ctxMap, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(nest(ctxMap, h.groups), a)
		return true
	})

	var sb strings.Builder
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	sb.WriteString("[" + t.Format(timeLayout) + "] ")
	sb.WriteString(h.env + "." + levelName(r.Level) + ": ")
	sb.WriteString(strings.ReplaceAll(r.Message, "\n", " "))
	sb.WriteByte(' ')
	if len(ctxMap) == 0 {
		sb.WriteString("[]")
	} else {
		b, err := json.Marshal(ctxMap)
		if err != nil {
			return err
		}
		sb.Write(b)
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func nest(m map[string]any, groups []string) map[string]any {
	for _, g := range groups {
		child, ok := m[g].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[g] = child
		}
		m = child
	}
	return m
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		target := m
		if a.Key != "" {
			target = nest(m, []string{a.Key})
		}
		for _, ga := range a.Value.Group() {
			addAttr(target, ga)
		}
		return
	}
	switch v := a.Value.Any().(type) {
	case error:
		m[a.Key] = v.Error()
	case time.Duration:
		m[a.Key] = v.String()
	case time.Time:
		m[a.Key] = v.Format(time.RFC3339)
	default:
		m[a.Key] = v
	}
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	if len(h.groups) == 0 {
		h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
		return &h2
	}
	// attach to the innermost group
	group := slog.Attr{Key: h.groups[len(h.groups)-1], Value: slog.GroupValue(attrs...)}
	for i := len(h.groups) - 2; i >= 0; i-- {
		group = slog.Attr{Key: h.groups[i], Value: slog.GroupValue(group)}
	}
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), group)
	return &h2
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string{}, h.groups...), name)
	return &h2
}
