package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Options configures the logger. Zero value gives a JSON logger on stdout at info level.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New returns a slog logger. Level falls back to LOG_LEVEL, then info.
// Format "text" selects the colored tint handler, anything else JSON.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)

	if strings.EqualFold(opts.Format, "text") {
		h := tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05.000Z07:00",
			NoColor:    !isTerminal(out),
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
		return slog.New(h)
	}
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// ParseLevel parses a level name; empty uses LOG_LEVEL, unknown values give info.
func ParseLevel(v string) slog.Level {
	if v == "" {
		v = os.Getenv("LOG_LEVEL")
	}
	if v == "" {
		return slog.LevelInfo
	}
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
