// Package logging builds the structured logger shared by the sandbox
// providers, sessions and the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Format selects the log record encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Option configures logger creation.
type Option func(*newOptions)

type newOptions struct {
	level  string
	format Format
	prefix string
}

// WithLevel sets the minimum level (debug, info, warn, error).
func WithLevel(level string) Option {
	return func(opts *newOptions) {
		opts.level = strings.TrimSpace(level)
	}
}

// WithFormat selects text or JSON records.
func WithFormat(format string) Option {
	return func(opts *newOptions) {
		opts.format = Format(strings.ToLower(strings.TrimSpace(format)))
	}
}

// WithPrefix tags every record with a component name.
func WithPrefix(prefix string) Option {
	return func(opts *newOptions) {
		opts.prefix = prefix
	}
}

// New returns a logger writing to w.
func New(w io.Writer, options ...Option) (*log.Logger, error) {
	resolved := resolveOptions(options)

	level := log.InfoLevel
	if resolved.level != "" {
		parsed, err := log.ParseLevel(resolved.level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          resolved.prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})

	switch resolved.format {
	case "", FormatText:
	case FormatJSON:
		logger.SetFormatter(log.JSONFormatter)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", resolved.format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything. Components fall back to it
// when no logger is injected.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func resolveOptions(options []Option) newOptions {
	resolved := newOptions{}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&resolved)
	}
	return resolved
}
