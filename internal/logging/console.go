package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

// requestIDTagLen trims request ids in console tags; the JSON log keeps them whole.
const requestIDTagLen = 8

// tagFields are lifted out of the attribute list and printed as a bracketed
// tag after the component, in this order.
var tagFields = []struct {
	key string
	tag string
}{
	{FieldRequestID, "req"},
	{FieldJobID, "job"},
	{FieldRoute, "route"},
	{FieldStatus, "status"},
}

// consoleHandler renders one line per record:
//
//	2024-03-09 14:05:00 WARN  session: [req=1a2b3c4d] stored session corrupt error=... impact=...
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	source bool
	group  string
	attrs  []slog.Attr
}

func newConsoleHandler(w io.Writer, level slog.Leveler, source bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, source: source}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = appendQualified(append([]slog.Attr(nil), h.attrs...), h.group, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}

func (h *consoleHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := append([]slog.Attr(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendQualified(fields, h.group, []slog.Attr{attr})
		return true
	})
	for _, attr := range ContextFields(ctx) {
		if !hasKey(fields, attr.Key) {
			fields = append(fields, attr)
		}
	}

	component := ""
	tags := make(map[string]string, len(tagFields))
	rest := fields[:0]
	for _, attr := range fields {
		switch {
		case attr.Key == FieldComponent:
			if component == "" {
				component = attr.Value.String()
			}
		case isTagField(attr.Key):
			if _, seen := tags[attr.Key]; !seen {
				tags[attr.Key] = attr.Value.String()
			}
		default:
			rest = append(rest, attr)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(record.Time.Local().Format(consoleTimeLayout))
	buf.WriteByte(' ')
	buf.WriteString(padLevel(record.Level))
	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	writeTags(&buf, tags)

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)

	if h.source {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" (")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(')')
		}
	}
	for _, attr := range rest {
		buf.WriteByte(' ')
		buf.WriteString(attr.Key)
		buf.WriteByte('=')
		buf.WriteString(consoleValue(attr.Value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// appendQualified flattens groups into dotted keys under prefix.
func appendQualified(dst []slog.Attr, prefix string, attrs []slog.Attr) []slog.Attr {
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if attr.Value.Kind() == slog.KindGroup {
			inner := prefix
			if attr.Key != "" {
				inner = prefix + attr.Key + "."
			}
			dst = appendQualified(dst, inner, attr.Value.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		attr.Key = prefix + attr.Key
		dst = append(dst, attr)
	}
	return dst
}

func isTagField(key string) bool {
	for _, f := range tagFields {
		if f.key == key {
			return true
		}
	}
	return false
}

func writeTags(buf *bytes.Buffer, tags map[string]string) {
	parts := make([]string, 0, len(tags))
	for _, f := range tagFields {
		value := tags[f.key]
		if value == "" {
			continue
		}
		if f.key == FieldRequestID && len(value) > requestIDTagLen {
			value = value[:requestIDTagLen]
		}
		parts = append(parts, f.tag+"="+value)
	}
	if len(parts) == 0 {
		return
	}
	buf.WriteByte('[')
	buf.WriteString(strings.Join(parts, " "))
	buf.WriteString("] ")
}

func padLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR "
	case level >= slog.LevelWarn:
		return "WARN  "
	case level >= slog.LevelInfo:
		return "INFO  "
	default:
		return "DEBUG "
	}
}

func consoleValue(v slog.Value) string {
	var s string
	if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny {
		s = err.Error()
	} else {
		s = v.String()
	}
	if s == "" || strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r == '=' || r == '"' || unicode.IsSpace(r) || !unicode.IsPrint(r)
}
