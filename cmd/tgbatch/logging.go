package main

import (
	"io"
	"log/slog"
	"os"

	"tgbatch/internal/config"

	"github.com/natefinch/lumberjack"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger writes text logs to stderr and, when lc.File is set, to a
// size-rotated file as well.
func newLogger(lc config.LogConfig, debug bool) (*slog.Logger, io.Closer) {
	level := parseLevel(lc.Level)
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if lc.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
	}
	w := io.MultiWriter(os.Stderr, rotator)
	return slog.New(slog.NewTextHandler(w, opts)), rotator
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
