package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog that keeps log lines uniform
// across services: every entry carries service, action and hostname.
// It is passed by value; With and Action return derived loggers.
type Logger struct {
	zl zerolog.Logger
}

func New(level string) (Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return Logger{}, err
	}

	hostname, _ := os.Hostname()
	zl := zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("hostname", hostname).
		Logger()

	return Logger{zl: zl}, nil
}

// With returns a logger with extra key/value pairs attached to every entry.
func (l Logger) With(kv ...any) Logger {
	return Logger{zl: l.zl.With().Fields(kv).Logger()}
}

// Action tags the logger with the action field used across all services.
func (l Logger) Action(action string) Logger {
	return l.With("action", action)
}

func (l Logger) Debug(msg string, kv ...any) {
	l.zl.Debug().Fields(kv).Msg(msg)
}

func (l Logger) Info(msg string, kv ...any) {
	l.zl.Info().Fields(kv).Msg(msg)
}

func (l Logger) Warn(msg string, kv ...any) {
	l.zl.Warn().Fields(kv).Msg(msg)
}

func (l Logger) Error(msg string, err error, kv ...any) {
	l.zl.Error().Err(err).Fields(kv).Msg(msg)
}
