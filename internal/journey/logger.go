package journey

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/themobileprof/moaflow/pkg/models"
)

// Journey is the trace of one use case run
type Journey struct {
	RunID       string        `json:"run_id"`
	UseCase     string        `json:"use_case"`
	Timestamp   time.Time     `json:"timestamp"`
	Steps       []Step        `json:"steps"`
	FinalParams models.Params `json:"final_params,omitempty"`
	Outcome     string        `json:"outcome,omitempty"`
}

// Step is one applied statement
type Step struct {
	Kind      string `json:"kind"`             // open, error, response, assignment, recursive
	Detail    string `json:"detail,omitempty"` // url, error code, matched key
	ErrorCode int    `json:"error_code,omitempty"`
	OffsetMs  int64  `json:"offset_ms"`
}

// Logger collects the steps of a run and appends finished journeys to a
// JSONL file. A Logger with an empty path only keeps the journey in memory.
type Logger struct {
	mu          sync.Mutex
	current     *Journey
	logFilePath string
}

// NewLogger creates a logger writing to path
func NewLogger(path string) *Logger {
	return &Logger{logFilePath: path}
}

// StartNewJourney begins a new trace
func (l *Logger) StartNewJourney(runID, useCase string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = &Journey{
		RunID:     runID,
		UseCase:   useCase,
		Timestamp: time.Now(),
		Steps:     make([]Step, 0),
	}
}

// AddStep records an applied statement
func (l *Logger) AddStep(kind, detail string, errorCode int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return
	}

	l.current.Steps = append(l.current.Steps, Step{
		Kind:      kind,
		Detail:    detail,
		ErrorCode: errorCode,
		OffsetMs:  time.Since(l.current.Timestamp).Milliseconds(),
	})
}

// Current returns a copy of the journey in progress
func (l *Logger) Current() (Journey, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return Journey{}, false
	}
	j := *l.current
	j.Steps = append([]Step(nil), l.current.Steps...)
	return j, true
}

// EndJourney finalizes the trace and appends it to the log file
func (l *Logger) EndJourney(outcome string, final models.Params) (Journey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return Journey{}, fmt.Errorf("no journey in progress")
	}

	l.current.Outcome = outcome
	l.current.FinalParams = final
	finished := *l.current
	l.current = nil

	if l.logFilePath == "" {
		return finished, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.logFilePath), 0755); err != nil {
		return finished, fmt.Errorf("failed to create trace directory: %w", err)
	}

	// One JSON object per line
	f, err := os.OpenFile(l.logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return finished, fmt.Errorf("failed to open trace log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(finished)
	if err != nil {
		return finished, fmt.Errorf("failed to marshal journey: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return finished, fmt.Errorf("failed to write journey: %w", err)
	}
	return finished, nil
}
