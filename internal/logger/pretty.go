package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	ansiReset = "\033[0m"
	ansiDim   = "\033[2m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiAmber = "\033[33m"
	ansiCyan  = "\033[36m"
)

// PrettyOptions configures a PrettyHandler.
type PrettyOptions struct {
	// Level is the minimum level written. Nil means slog.LevelInfo.
	Level slog.Leveler
	// NoColor disables ANSI escapes.
	NoColor bool
}

// PrettyHandler writes one compact line per record for a terminal watching
// a training run:
//
//	12:04:05.120 INFO  pretraining epoch run=4f0c… loss=1.9342 elapsed=2.41s
//
// Attributes added through WithAttrs are rendered once and reused for every
// record. Groups flatten into dotted keys.
type PrettyHandler struct {
	opts   PrettyOptions
	mu     *sync.Mutex
	w      io.Writer
	prefix string
	pre    []byte
}

// NewPrettyHandler returns a handler writing to w. A nil opts uses the
// defaults.
func NewPrettyHandler(w io.Writer, opts *PrettyOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: new(sync.Mutex)}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	if !r.Time.IsZero() {
		buf = h.paint(buf, ansiDim, r.Time.AppendFormat(nil, "15:04:05.000"))
		buf = append(buf, ' ')
	}
	buf = h.paint(buf, levelColor(r.Level), []byte(levelLabel(r.Level)))
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	buf = append(buf, h.pre...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.pre = append([]byte(nil), h.pre...)
	for _, a := range attrs {
		h2.pre = h.appendAttr(h2.pre, h.prefix, a)
	}
	return &h2
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// appendAttr writes " key=value", expanding groups.
func (h *PrettyHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, g := range v.Group() {
			buf = h.appendAttr(buf, prefix, g)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = h.paint(buf, ansiCyan, []byte(prefix+a.Key+"="))
	switch v.Kind() {
	case slog.KindString:
		buf = appendString(buf, v.String())
	case slog.KindFloat64:
		buf = strconv.AppendFloat(buf, v.Float64(), 'g', 6, 64)
	case slog.KindDuration:
		buf = append(buf, roundDuration(v.Duration()).String()...)
	case slog.KindTime:
		buf = v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			buf = h.paint(buf, ansiRed, appendString(nil, err.Error()))
			break
		}
		buf = appendString(buf, fmt.Sprint(v.Any()))
	default:
		buf = append(buf, v.String()...)
	}
	return buf
}

func (h *PrettyHandler) paint(buf []byte, color string, s []byte) []byte {
	if h.opts.NoColor {
		return append(buf, s...)
	}
	buf = append(buf, color...)
	buf = append(buf, s...)
	return append(buf, ansiReset...)
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN "
	case l >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ansiRed
	case l >= slog.LevelWarn:
		return ansiAmber
	case l >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiDim
	}
}

// roundDuration rounds to the millisecond above one second and to 10µs
// above one millisecond.
func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	default:
		return d
	}
}

func appendString(buf []byte, s string) []byte {
	if s == "" || strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuote(r rune) bool {
	return r == '"' || r == '=' || unicode.IsSpace(r) || !unicode.IsPrint(r)
}
