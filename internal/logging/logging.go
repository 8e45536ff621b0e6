// Package logging sets up the process-wide slog logger: colored text for
// local development, JSON for production.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Setup builds a logger for the given environment ("local" gets the pretty
// handler at debug level, anything else JSON at info level) and installs it
// as the slog default.
func Setup(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case "local":
		log = slog.New(NewPrettyHandler(os.Stdout, slog.LevelDebug))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	slog.SetDefault(log)
	return log
}

// PrettyHandler renders records as a colored level tag, the message, and
// sorted key=value attributes. It is meant for a developer terminal, not
// for log aggregation.
type PrettyHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	attrs []slog.Attr
}

// NewPrettyHandler creates a PrettyHandler writing to out.
func NewPrettyHandler(out io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{mu: &sync.Mutex{}, out: out, level: level}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	tag := r.Level.String() + ":"
	switch {
	case r.Level >= slog.LevelError:
		tag = color.RedString(tag)
	case r.Level >= slog.LevelWarn:
		tag = color.YellowString(tag)
	case r.Level >= slog.LevelInfo:
		tag = color.CyanString(tag)
	default:
		tag = color.MagentaString(tag)
	}

	fields := make(map[string]string, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.String()
		return true
	})
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(color.WhiteString("%s=", k))
		b.WriteString(fields[k])
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprint(h.out, b.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{mu: h.mu, out: h.out, level: h.level, attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)}
}

func (h *PrettyHandler) WithGroup(string) slog.Handler {
	// Groups are flattened; fine for a dev console.
	return h
}
