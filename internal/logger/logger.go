// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// level is shared by every logger created by New so that it can be changed
// after the logger has been handed out
var level = new(slog.LevelVar)

// New returns a logger writing to w in the given format ("text" or "json").
// It panics on an unknown format; configuration is validated before this is
// called.
func New(lvl, format string, w io.Writer) *slog.Logger {
	level.Set(parseLogLevel(lvl))
	return slog.New(handlerForFormat(format, w))
}

func LogLevel() slog.Level {
	return level.Level()
}

// SetLevel changes the level of all loggers created by New
func SetLevel(lvl string) {
	level.Set(parseLogLevel(lvl))
}

func handlerForFormat(format string, w io.Writer) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})

	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.SourceKey {
					if src, ok := a.Value.Any().(*slog.Source); ok {
						src.File = shortenSource(src.File)
					}
				}
				return a
			},
		})

	default:
		panic(fmt.Sprintf("invalid format: %s", format))
	}
}

// shortenSource keeps the last two directories and the file name
func shortenSource(file string) string {
	parts := strings.Split(filepath.ToSlash(file), "/")
	if len(parts) > 2 {
		return filepath.Join(parts[len(parts)-3:]...)
	}
	return filepath.Join(parts...)
}

func parseLogLevel(level string) slog.Level {
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
