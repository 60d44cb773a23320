package engine

import (
	"go.uber.org/zap"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/internal/journey"
)

// DefaultMaxRecursion bounds how many times a use case may re-run itself
const DefaultMaxRecursion = 32

// Option configures an Engine
type Option func(*Engine)

// WithScheme sets the URL scheme used for module opens
func WithScheme(scheme string) Option {
	return func(e *Engine) {
		e.scheme = scheme
	}
}

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithJournal records the run's start and outcome
func WithJournal(j interfaces.RunJournal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithTrace records every applied statement to a journey trace
func WithTrace(t *journey.Logger) Option {
	return func(e *Engine) {
		e.trace = t
	}
}

// WithMaxRecursion sets the recursion guard. Values below 1 keep the default.
func WithMaxRecursion(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRecursion = n
		}
	}
}

// WithRunID overrides the generated run ID
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.runID = id
		}
	}
}
