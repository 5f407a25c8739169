package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"
)

// newJSONHandler writes one object per line with keys ts, level, msg and,
// when enabled, caller. Context fields such as request_id are appended.
func newJSONHandler(w io.Writer, level slog.Leveler, source bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   source,
		ReplaceAttr: jsonKey,
	}
	return contextHandler{inner: slog.NewJSONHandler(w, opts)}
}

func jsonKey(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.LevelKey:
		level, _ := attr.Value.Any().(slog.Level)
		return slog.String("level", levelName(level))
	case slog.SourceKey:
		src, ok := attr.Value.Any().(*slog.Source)
		if !ok || src == nil {
			return slog.Attr{}
		}
		return slog.String("caller", filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
	}
	return attr
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
