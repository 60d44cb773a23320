package router

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/internal/logging"
	"github.com/themobileprof/moaflow/internal/metrics"
	"github.com/themobileprof/moaflow/internal/urlvalue"
	"github.com/themobileprof/moaflow/pkg/models"
)

var (
	// ErrNoRoute is reported to the fatal handler when no module matches a URL
	ErrNoRoute = errors.New("wrong host or path")
	// ErrDuplicateRoute is returned when two modules claim the same route
	ErrDuplicateRoute = errors.New("route already registered")
)

// URLParameter is the key under which the full URL is handed to modules
const URLParameter = "url"

// FatalHandler is invoked for configuration errors that cannot be recovered,
// such as opening an unregistered route
type FatalHandler func(err error)

// AppRouter dispatches module URLs to registered modules
type AppRouter struct {
	mu      sync.RWMutex
	modules []interfaces.Module
	fatal   FatalHandler
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// Option configures an AppRouter
type Option func(*AppRouter)

// WithFatalHandler replaces the default handler, which panics
func WithFatalHandler(fn FatalHandler) Option {
	return func(r *AppRouter) {
		r.fatal = fn
	}
}

// WithLogger sets the router's logger
func WithLogger(l *zap.Logger) Option {
	return func(r *AppRouter) {
		r.logger = logging.OrNop(l)
	}
}

// New creates a router with no modules
func New(opts ...Option) *AppRouter {
	r := &AppRouter{
		fatal:  func(err error) { panic(err) },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure AppRouter implements Router interface
var _ interfaces.Router = (*AppRouter)(nil)

// Register adds modules. Each route may be registered once.
func (r *AppRouter) Register(mods ...interfaces.Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range mods {
		for _, existing := range r.modules {
			if existing.Route() == m.Route() {
				return fmt.Errorf("%w: %s", ErrDuplicateRoute, m.Route())
			}
		}
		r.modules = append(r.modules, m)
		r.logger.Debug("Registered module",
			zap.String("route", m.Route()),
			zap.Strings("paths", m.Paths()))
	}
	return nil
}

// Modules returns the registered modules in registration order
func (r *AppRouter) Modules() []interfaces.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]interfaces.Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// CanOpen reports whether u resolves to a registered module path
func (r *AppRouter) CanOpen(u urlvalue.URL) bool {
	_, _, ok := r.resolve(u)
	return ok
}

// Open resolves u and runs the module on its own goroutine. The module gets
// the query parameters plus the serialized URL under "url". done fires at
// most once; an unresolvable URL goes to the fatal handler.
func (r *AppRouter) Open(u urlvalue.URL, done interfaces.Completion) {
	mod, path, ok := r.resolve(u)
	if !ok {
		r.logger.Error("No module for url", zap.String("url", u.String()))
		r.fatal(fmt.Errorf("%w: %s", ErrNoRoute, u.String()))
		return
	}

	params := u.QueryMap()
	params[URLParameter] = u.String()

	var once sync.Once
	complete := func(resp models.Response) {
		fired := false
		once.Do(func() {
			fired = true
			result := "ok"
			if resp.HasError() {
				result = "error"
			}
			metrics.RecordOpen(u.Host, path, result)
			r.logger.Debug("Module completed",
				zap.String("url", u.String()),
				zap.Int("error_code", resp.ErrorCode))
			if done != nil {
				done(resp)
			}
		})
		if !fired {
			r.logger.Warn("Module completed more than once", zap.String("url", u.String()))
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		mod.Open(path, params, complete)
	}()
}

// Wait blocks until every module goroutine started by Open has returned
func (r *AppRouter) Wait() {
	r.wg.Wait()
}

func (r *AppRouter) resolve(u urlvalue.URL) (interfaces.Module, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.Route() != u.Host {
			continue
		}
		for _, p := range m.Paths() {
			if p == u.Path {
				return m, p, true
			}
		}
		return nil, "", false
	}
	return nil, "", false
}
