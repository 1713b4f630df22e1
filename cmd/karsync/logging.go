package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"karsync/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu   sync.Mutex
	logFile *lumberjack.Logger
)

// setupLogging installs the default slog logger. Output goes to stderr and,
// when configured, to a rotating file. Unless full is set the console only
// shows warnings so command output stays readable.
func setupLogging(logConfig config.LoggingConfig, full bool) {
	level := parseLevel(logConfig.Level)
	if !full && level < slog.LevelWarn {
		level = slog.LevelWarn
	}

	var out io.Writer = os.Stderr

	logMu.Lock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if logConfig.File != "" {
		if err := os.MkdirAll(filepath.Dir(logConfig.File), 0755); err == nil {
			logFile = &lumberjack.Logger{
				Filename:   logConfig.File,
				MaxSize:    logConfig.MaxSizeMB,
				MaxBackups: logConfig.MaxBackups,
				MaxAge:     logConfig.MaxAgeDays,
				Compress:   logConfig.Compress,
			}
			out = io.MultiWriter(os.Stderr, logFile)
		}
	}
	logMu.Unlock()

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if logConfig.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func closeLogFile() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
