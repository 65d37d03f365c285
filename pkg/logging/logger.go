package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type slogLogger struct {
	l *slog.Logger
}

// NewLogger builds a Logger writing to the output named in cfg.
// The returned io.Closer releases the log file when Output is "file".
func NewLogger(cfg LogConfig) (Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer = nopCloser{}

	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging output is file but no file_path is set")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, nil, fmt.Errorf("unsupported logging output: %s", cfg.Output)
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	logger, err := NewWriterLogger(out, cfg.Format, level, cfg.IncludeCaller)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return logger, closer, nil
}

// NewWriterLogger builds a Logger on top of w
func NewWriterLogger(w io.Writer, format string, level slog.Level, includeCaller bool) (Logger, error) {
	opts := &slog.HandlerOptions{Level: level, AddSource: includeCaller}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	return &slogLogger{l: slog.New(h)}, nil
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unsupported log level: %s", s)
}

func (s *slogLogger) Debug(msg string, fields ...Field) {
	s.l.Debug(msg, attrs(fields)...)
}

func (s *slogLogger) Info(msg string, fields ...Field) {
	s.l.Info(msg, attrs(fields)...)
}

func (s *slogLogger) Warn(msg string, fields ...Field) {
	s.l.Warn(msg, attrs(fields)...)
}

func (s *slogLogger) Error(msg string, fields ...Field) {
	s.l.Error(msg, attrs(fields)...)
}

func (s *slogLogger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	return &slogLogger{l: s.l.With(attrs(fields)...)}
}

func (s *slogLogger) WithContext(ctx context.Context) Logger {
	if id, ok := RequestIDFromContext(ctx); ok {
		return s.WithFields(F("request_id", id))
	}
	return s
}

func (s *slogLogger) LogSystemEvent(event string, data map[string]interface{}) {
	args := make([]any, 0, len(data)+1)
	args = append(args, slog.String("event", event))
	for k, v := range data {
		args = append(args, slog.Any(k, v))
	}
	s.l.Info("system event", args...)
}

func attrs(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = slog.Any(f.Key, f.Value)
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
