package internal

import (
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// NewLogger builds the process logger. The json format writes one slog
// JSON record per line; text renders through charmbracelet/log for humans.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           charmlog.Level(level),
	})
	handler.SetFormatter(charmlog.TextFormatter)
	return slog.New(handler)
}
