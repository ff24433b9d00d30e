package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. output selects the destination
// ("stderr", "stdout" or "file"; "file" requires filename), format selects
// the handler ("text" or "json") and level the minimum level. The returned
// cleanup closes the log file when one was opened.
func NewLogger(output, format, filename, level string) (*slog.Logger, func(), error) {
	var w io.Writer
	var closer io.Closer
	switch strings.ToLower(output) {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "file":
		if filename == "" {
			return nil, nil, fmt.Errorf("unable to create log file which name is null(\"\")")
		}
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create log file(%s): %w", filename, err)
		}
		w = f
		closer = f
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", output)
	}

	ho := &slog.HandlerOptions{}
	switch strings.ToLower(level) {
	case "debug":
		ho.Level = slog.LevelDebug
	case "info":
		ho.Level = slog.LevelInfo
	case "warn":
		ho.Level = slog.LevelWarn
	case "error":
		ho.Level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unsupported log level: %s", level)
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, ho)
	case "text":
		handler = slog.NewTextHandler(w, ho)
	default:
		return nil, nil, fmt.Errorf("unsupported log format: %s", format)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return logger, cleanup, nil
}
