package router

import (
	"sort"
	"sync"
	"time"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/pkg/models"
)

// Call is one request a StaticModule received
type Call struct {
	Path   string
	Params map[string]string
}

// StaticModule answers each path with scripted replies from a manifest
type StaticModule struct {
	route string
	paths map[string]*models.PathSpec

	mu    sync.Mutex
	next  map[string]int
	calls []Call
}

// NewStaticModule creates a module from its manifest entry
func NewStaticModule(spec models.ModuleSpec) *StaticModule {
	paths := make(map[string]*models.PathSpec, len(spec.Paths))
	for p, ps := range spec.Paths {
		if ps == nil {
			ps = &models.PathSpec{}
		}
		paths[p] = ps
	}
	return &StaticModule{
		route: spec.Route,
		paths: paths,
		next:  make(map[string]int),
	}
}

// Ensure StaticModule implements Module interface
var _ interfaces.Module = (*StaticModule)(nil)

func (m *StaticModule) Route() string {
	return m.route
}

func (m *StaticModule) Paths() []string {
	out := make([]string, 0, len(m.paths))
	for p := range m.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Open replies with the next scripted reply for path, repeating the last one
// once the script is exhausted. A path without replies answers an empty mapping.
func (m *StaticModule) Open(path string, params map[string]string, done interfaces.Completion) {
	reply := m.take(path, params)

	if reply.DelayMs > 0 {
		time.Sleep(time.Duration(reply.DelayMs) * time.Millisecond)
	}

	code := reply.ErrorCode
	if code == 0 && reply.Status != 0 {
		code = ErrorCodeFromStatus(reply.Status)
	}

	data := make(map[string]any, len(reply.Data))
	for k, v := range reply.Data {
		data[k] = v
	}
	done(models.Response{Data: data, ErrorCode: code})
}

// Calls returns the requests received so far
func (m *StaticModule) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *StaticModule) take(path string, params map[string]string) models.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Path: path, Params: params})

	spec, ok := m.paths[path]
	if !ok || len(spec.Replies) == 0 {
		return models.Reply{}
	}
	i := m.next[path]
	if i >= len(spec.Replies) {
		i = len(spec.Replies) - 1
	} else {
		m.next[path] = i + 1
	}
	return spec.Replies[i]
}

// HandlerFunc handles one module request
type HandlerFunc func(path string, params map[string]string, done interfaces.Completion)

// FuncModule adapts a function into a Module
type FuncModule struct {
	route   string
	paths   []string
	handler HandlerFunc
}

// NewFuncModule creates a module whose requests are handled by fn
func NewFuncModule(route string, paths []string, fn HandlerFunc) *FuncModule {
	return &FuncModule{route: route, paths: paths, handler: fn}
}

// Ensure FuncModule implements Module interface
var _ interfaces.Module = (*FuncModule)(nil)

func (m *FuncModule) Route() string   { return m.route }
func (m *FuncModule) Paths() []string { return m.paths }

func (m *FuncModule) Open(path string, params map[string]string, done interfaces.Completion) {
	m.handler(path, params, done)
}
