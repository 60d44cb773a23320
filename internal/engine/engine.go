// Package engine interprets use case definitions. It owns one run's service
// parameters, walks the statement list, opens modules through a router and
// continues with each module's callback statements when the module replies.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/internal/journey"
	"github.com/themobileprof/moaflow/internal/metrics"
	"github.com/themobileprof/moaflow/internal/parser"
	"github.com/themobileprof/moaflow/pkg/models"
)

var (
	// ErrRecursionLimit is returned when a use case re-runs itself more often
	// than the configured maximum
	ErrRecursionLimit = errors.New("use case recursion limit exceeded")

	// ErrAlreadyStarted is returned when Run is called twice on one Engine
	ErrAlreadyStarted = errors.New("engine already started")
)

// Run outcomes written to the journal and metrics
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusInvalid   = "invalid"
)

// Engine executes a single use case run
type Engine struct {
	def          models.Definition
	name         string
	router       interfaces.Router
	scheme       string
	logger       *zap.Logger
	journal      interfaces.RunJournal
	trace        *journey.Logger
	maxRecursion int
	runID        string

	mu         sync.Mutex
	params     models.Params
	started    bool
	startTime  time.Time
	logID      int64
	pending    int
	recursions int
	err        error
	done       chan struct{}
}

// New creates an engine for def. Use cases open modules through r.
func New(def models.Definition, r interfaces.Router, opts ...Option) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("router is required")
	}

	e := &Engine{
		def:          def,
		router:       r,
		logger:       zap.NewNop(),
		maxRecursion: DefaultMaxRecursion,
		runID:        uuid.NewString(),
		params:       def.InitialParams(),
		done:         make(chan struct{}),
	}
	e.name, _ = def.Name()

	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("run_id", e.runID), zap.String("use_case", e.name))
	return e, nil
}

// RunID identifies this run in the journal and trace
func (e *Engine) RunID() string {
	return e.runID
}

// Params returns a snapshot of the current service parameters
func (e *Engine) Params() models.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Clone()
}

// Run validates the definition and walks its statements. Module opens are
// dispatched without blocking; use Wait to join their continuations.
// An invalid definition executes nothing and returns ErrInvalidDefinition.
func (e *Engine) Run() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.startTime = time.Now()
	e.mu.Unlock()

	if err := e.def.Validate(); err != nil {
		e.logger.Warn("Refusing to run invalid use case", zap.Error(err))
		metrics.RecordRun(e.name, StatusInvalid, 0)
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(e.done)
		return err
	}

	if e.journal != nil {
		logID, err := e.journal.LogStart(e.runID, e.name)
		if err != nil {
			e.logger.Warn("Failed to log run start", zap.Error(err))
		}
		e.logID = logID
	}
	if e.trace != nil {
		e.trace.StartNewJourney(e.runID, e.name)
	}

	e.logger.Info("Running use case", zap.Int("params", len(e.Params())))

	e.acquire()
	e.restart()
	e.release()
	return nil
}

// Wait blocks until every dispatched open and its callback statements have
// finished. It returns ErrRecursionLimit when the run was aborted and
// ErrInvalidDefinition when it never started.
func (e *Engine) Wait() error {
	return e.WaitContext(context.Background())
}

// WaitContext is Wait bounded by ctx. A module that never completes leaves
// the run pending; WaitContext then returns ctx.Err() and the run keeps its
// parameters as they were.
func (e *Engine) WaitContext(ctx context.Context) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// restart walks the top level statement list from the beginning
func (e *Engine) restart() {
	stmts, ok := e.def.Statements()
	if !ok {
		return
	}
	e.execute(stmts, nil, 0)
}

// execute applies each statement in order. The checks are independent:
// an error statement needs an error code, response and assignment
// statements need a response and open statements always dispatch.
func (e *Engine) execute(stmts []any, response map[string]any, errorCode int) {
	for _, raw := range stmts {
		if e.aborted() {
			return
		}

		s, ok := models.AsMap(raw)
		if !ok {
			e.logger.Debug("Skipping non-mapping statement", zap.Any("statement", raw))
			continue
		}

		kind := parser.Role(s, e.name)
		switch kind {
		case models.StatementError:
			if errorCode != 0 {
				e.executeError(s, errorCode)
			}
		case models.StatementResponseMatch:
			if response != nil {
				e.executeResponse(s, response)
			}
		case models.StatementParamAssignment:
			if response != nil {
				e.assign(s, response)
				e.record(kind, "", 0)
			}
		case models.StatementRecursiveCall:
			if response != nil {
				e.executeRecursively(s, response)
			}
		case models.StatementOpen:
			e.executeOpen(s)
		default:
			e.logger.Debug("Skipping inert statement", zap.Any("statement", s))
		}
	}
}

func (e *Engine) executeError(s map[string]any, errorCode int) {
	body, ok := parser.ErrorBody(s)
	if !ok {
		return
	}
	branch, ok := parser.MatchingErrorBranch(body, errorCode)
	if !ok {
		e.logger.Debug("No error branch for code", zap.Int("error_code", errorCode))
		return
	}
	e.record(models.StatementError, fmt.Sprint(errorCode), errorCode)
	e.execute(branch, nil, errorCode)
}

// executeResponse runs a matching response statement. A sequence body is
// executed with the response; a mapping body of ## keys assigns parameters.
func (e *Engine) executeResponse(s map[string]any, response map[string]any) {
	for _, matched := range parser.MatchingResponseStatements([]any{s}, response) {
		body, _ := parser.Body(matched)

		if stmts, ok := models.AsList(body); ok {
			e.record(models.StatementResponseMatch, firstKey(matched), 0)
			e.execute(stmts, response, 0)
			continue
		}
		if assignments, ok := models.AsMap(body); ok && parser.IsParamAssignment(assignments) {
			e.record(models.StatementResponseMatch, firstKey(matched), 0)
			e.assign(assignments, response)
		}
	}
}

// executeRecursively applies the carried assignments and re-runs the use
// case from the top
func (e *Engine) executeRecursively(s map[string]any, response map[string]any) {
	e.mu.Lock()
	e.recursions++
	n := e.recursions
	if n > e.maxRecursion {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %s re-ran %d times", ErrRecursionLimit, e.name, e.maxRecursion)
		}
		e.mu.Unlock()
		e.logger.Error("Aborting use case", zap.Int("max_recursion", e.maxRecursion))
		return
	}
	e.mu.Unlock()

	if assignments, ok := parser.RecursiveAssignments(s, e.name); ok {
		e.assign(assignments, response)
	}

	metrics.RecordRecursion(e.name)
	e.record(models.StatementRecursiveCall, e.name, 0)
	e.logger.Debug("Re-running use case", zap.Int("recursion", n))
	e.restart()
}

// executeOpen dispatches an open statement. The callback statements run when
// the module completes; malformed opens are skipped.
func (e *Engine) executeOpen(s map[string]any) {
	u, ok := parser.ExtractURL(s, e.scheme, e.Params())
	if !ok {
		e.logger.Debug("Skipping open with invalid url", zap.String("scheme", e.scheme))
		return
	}
	callback, ok := parser.ExtractCallback(s)
	if !ok {
		e.logger.Debug("Skipping open without callback list", zap.String("url", u.String()))
		return
	}

	e.record(models.StatementOpen, u.String(), 0)
	e.logger.Debug("Opening module", zap.String("url", u.String()))

	e.acquire()
	var once sync.Once
	e.router.Open(u, func(resp models.Response) {
		once.Do(func() {
			defer e.release()
			if len(callback) > 0 {
				e.execute(callback, resp.Data, resp.ErrorCode)
			}
		})
	})
}

// assign replaces the service parameters with the resolved ones
func (e *Engine) assign(assignments map[string]any, response map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = parser.ResolveParameters(assignments, e.params, response)
}

func (e *Engine) aborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err != nil
}

func (e *Engine) record(kind models.StatementKind, detail string, errorCode int) {
	metrics.RecordStatement(kind.String())
	if e.trace != nil {
		e.trace.AddStep(kind.String(), detail, errorCode)
	}
}

func (e *Engine) acquire() {
	e.mu.Lock()
	e.pending++
	e.mu.Unlock()
}

// release finishes the run once nothing is pending
func (e *Engine) release() {
	e.mu.Lock()
	e.pending--
	if e.pending > 0 {
		e.mu.Unlock()
		return
	}
	runErr := e.err
	final := e.params.Clone()
	e.mu.Unlock()

	e.finish(runErr, final)
	close(e.done)
}

func (e *Engine) finish(runErr error, final models.Params) {
	duration := time.Since(e.startTime)
	status := StatusCompleted
	errorMsg := ""
	if runErr != nil {
		status = StatusFailed
		errorMsg = runErr.Error()
	}

	metrics.RecordRun(e.name, status, duration)

	if e.journal != nil {
		if err := e.journal.LogComplete(e.logID, status, errorMsg, duration.Milliseconds(), final); err != nil {
			e.logger.Warn("Failed to log run completion", zap.Error(err))
		}
	}
	if e.trace != nil {
		if _, err := e.trace.EndJourney(status, final); err != nil {
			e.logger.Warn("Failed to write trace", zap.Error(err))
		}
	}

	e.logger.Info("Use case finished",
		zap.String("status", status),
		zap.Duration("duration", duration))
}

func firstKey(s map[string]any) string {
	for k := range s {
		return k
	}
	return ""
}
