// Package logging provides structured logging for git-ai using slog, writing
// JSON lines to .git/ai/logs/<component>.log with a stderr fallback.
package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/git-ai/git-ai/internal/paths"
)

// LevelEnvVar controls log verbosity, overriding any configured level.
const LevelEnvVar = "GIT_AI_LOG_LEVEL"

// LogsDir is relative to the .git/ai root.
const LogsDir = "logs"

var (
	mu        sync.RWMutex
	logger    *slog.Logger
	logFile   *os.File
	bufWriter *bufio.Writer
)

type ctxKey string

const componentKey ctxKey = "component"

// WithComponent tags log lines emitted through ctx with a component name.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// Init opens (or creates) the log file for the given component name. Falls
// back to stderr if the file can't be created. Safe to call repeatedly.
func Init(component string) error {
	mu.Lock()
	defer mu.Unlock()

	flushLocked()

	level := parseLevel(os.Getenv(LevelEnvVar))

	root, err := paths.AIRoot()
	if err != nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil //nolint:nilerr // fallback to stderr is intentional, not a caller-visible failure
	}

	logsPath := filepath.Join(root, LogsDir)
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil //nolint:nilerr
	}

	f, err := os.OpenFile(filepath.Join(logsPath, component+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil //nolint:nilerr
	}

	logFile = f
	bufWriter = bufio.NewWriterSize(f, 8192)
	logger = slog.New(slog.NewJSONHandler(bufWriter, &slog.HandlerOptions{Level: level}))
	return nil
}

// Close flushes and closes the log file, if one is open. Safe to call
// multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	flushLocked()
}

func flushLocked() {
	if bufWriter != nil {
		_ = bufWriter.Flush()
		bufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if v, ok := ctx.Value(componentKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("component", v))
	}
	return attrs
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := get()
	all := make([]any, 0, len(attrs)+2)
	for _, a := range attrsFromContext(ctx) {
		all = append(all, a)
	}
	all = append(all, attrs...)
	l.Log(ctx, level, msg, all...)
}

func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }
func Info(ctx context.Context, msg string, attrs ...any)  { log(ctx, slog.LevelInfo, msg, attrs...) }
func Warn(ctx context.Context, msg string, attrs ...any)  { log(ctx, slog.LevelWarn, msg, attrs...) }
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// Writer exposes the active log sink for components (e.g. the proxy) that
// need a raw io.Writer instead of structured attrs.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	if bufWriter != nil {
		return bufWriter
	}
	return os.Stderr
}
