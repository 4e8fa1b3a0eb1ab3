// Package logger builds the structured loggers used across the module and
// provides attribute helpers for JOSE-specific fields.
//
// Attribute helpers return the empty slog.Attr for zero values, which slog
// drops, so callers can pass them unconditionally:
//
//	log.DebugContext(ctx, "verified token",
//		logger.Serialization(token.Serialization.String()),
//		logger.Error(err),
//	)
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config selects the handler.
type Config struct {
	// Level is one of debug, info, warn, or error.
	Level string

	// Format is "text" or "json".
	Format string

	// Writer receives log records.
	Writer io.Writer
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// New returns a logger for cfg.
func New(cfg Config) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		var err error
		level, err = ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
	}

	w := cfg.Writer
	if w == nil {
		w = io.Discard
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component names the emitting package.
func Component(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("component", name)
}

// Algorithm creates an attribute for a JWA algorithm identifier.
func Algorithm(alg string) slog.Attr {
	if alg == "" {
		return slog.Attr{}
	}
	return slog.String("alg", alg)
}

// KeyID creates an attribute for a JWK key id.
func KeyID(kid string) slog.Attr {
	if kid == "" {
		return slog.Attr{}
	}
	return slog.String("kid", kid)
}

// Serialization creates an attribute for a token serialization name.
func Serialization(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("serialization", name)
}

// Count creates an attribute for a number of items, such as signatures.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Index creates an attribute for a position in a list.
func Index(i int) slog.Attr {
	return slog.Int("index", i)
}

// URL creates an attribute for a URL.
func URL(url string) slog.Attr {
	if url == "" {
		return slog.Attr{}
	}
	return slog.String("url", url)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
