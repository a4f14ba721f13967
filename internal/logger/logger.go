package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Log = zerolog.Nop()

type ctxKey struct{}

// Init configures the package logger. format is "json" or "text"/"plain";
// unknown levels fall back to info.
func Init(serviceName, level, format string) {
	InitWriter(os.Stdout, serviceName, level, format)
}

func InitWriter(w io.Writer, serviceName, level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "text" || format == "plain" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: format == "plain"}
	}

	Log = zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &log)
}

// FromContext returns the logger stored by WithContext, or the package
// logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return log
	}
	return &Log
}
