// Package logging configures slog for the process and routes third-party
// client logs into zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// NewHandler returns a JSON handler for prod and a text handler otherwise.
// Terminals always get text.
func NewHandler(w io.Writer, env string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if env == "prod" && !isTerminal(w) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup installs the default slog logger writing to stderr. DEBUG in the
// environment forces the debug level.
func Setup(env, level string) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if os.Getenv("DEBUG") != "" {
		l, err = slog.LevelDebug, nil
	}

	logger := slog.New(NewHandler(os.Stderr, env, l))
	slog.SetDefault(logger)
	return logger, err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewZap builds the zap logger used for client library internals
func NewZap(env string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	if env == "prod" {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return config.Build()
}

// RedisLogger adapts zap to the go-redis logging interface
type RedisLogger struct {
	logger *zap.SugaredLogger
}

func NewRedisLogger(logger *zap.Logger) *RedisLogger {
	return &RedisLogger{logger: logger.Named("redis").Sugar()}
}

func (r *RedisLogger) Printf(_ context.Context, format string, v ...interface{}) {
	r.logger.Warnf(format, v...)
}
