package cmd

import (
	"io"
	"log/slog"
	"os"
	"strconv"
)

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func logLevel(verbosity int) slog.Level {
	switch {
	case verbosity >= 2:
		return slog.LevelDebug
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// setupLogging installs the process-wide logger used by every package
func setupLogging(w io.Writer, verbosity int) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel(verbosity)})
	slog.SetDefault(slog.New(handler))
}
