package mocks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/internal/urlvalue"
	"github.com/themobileprof/moaflow/internal/usecases"
	"github.com/themobileprof/moaflow/pkg/models"
)

// MockUseCaseStore is a mock implementation of UseCaseStore for testing
type MockUseCaseStore struct {
	LoadFromFileFunc func(path string) (models.Definition, error)
	ImportFunc       func(name, source string, def models.Definition) error
	GetFunc          func(name string) (models.Definition, error)
	ListFunc         func() ([]models.UseCaseRecord, error)
	defs             map[string]models.Definition
}

// NewMockUseCaseStore creates a new mock use case store
func NewMockUseCaseStore() *MockUseCaseStore {
	return &MockUseCaseStore{
		defs: make(map[string]models.Definition),
	}
}

func (m *MockUseCaseStore) LoadFromFile(path string) (models.Definition, error) {
	if m.LoadFromFileFunc != nil {
		return m.LoadFromFileFunc(path)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *MockUseCaseStore) Import(name, source string, def models.Definition) error {
	if m.ImportFunc != nil {
		return m.ImportFunc(name, source, def)
	}
	m.defs[name] = def
	return nil
}

func (m *MockUseCaseStore) Get(name string) (models.Definition, error) {
	if m.GetFunc != nil {
		return m.GetFunc(name)
	}
	if def, ok := m.defs[name]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("%w: %s", usecases.ErrNotFound, name)
}

func (m *MockUseCaseStore) List() ([]models.UseCaseRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []models.UseCaseRecord
	for _, name := range names {
		key, _ := m.defs[name].Name()
		result = append(result, models.UseCaseRecord{Name: name, Key: key, Definition: m.defs[name]})
	}
	return result, nil
}

// Ensure MockUseCaseStore implements UseCaseStore interface
var _ interfaces.UseCaseStore = (*MockUseCaseStore)(nil)

// MockRouter is a mock implementation of Router that completes every open
// synchronously. Without OpenFunc it answers with Response.
type MockRouter struct {
	OpenFunc func(u urlvalue.URL, done interfaces.Completion)
	Response models.Response

	mu     sync.Mutex
	opened []urlvalue.URL
}

func (m *MockRouter) Open(u urlvalue.URL, done interfaces.Completion) {
	m.mu.Lock()
	m.opened = append(m.opened, u)
	m.mu.Unlock()

	if m.OpenFunc != nil {
		m.OpenFunc(u, done)
		return
	}
	if done != nil {
		done(m.Response)
	}
}

// Opened returns the URLs opened so far
func (m *MockRouter) Opened() []urlvalue.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]urlvalue.URL(nil), m.opened...)
}

// Ensure MockRouter implements Router interface
var _ interfaces.Router = (*MockRouter)(nil)

// MockJournal is an in-memory implementation of RunJournal for testing
type MockJournal struct {
	LogStartFunc    func(runID, useCase string) (int64, error)
	LogCompleteFunc func(logID int64, status, errorMsg string, durationMs int64, finalParams models.Params) error

	mu   sync.Mutex
	runs []models.RunRecord
}

func (m *MockJournal) LogStart(runID, useCase string) (int64, error) {
	if m.LogStartFunc != nil {
		return m.LogStartFunc(runID, useCase)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, models.RunRecord{
		ID:      int64(len(m.runs) + 1),
		RunID:   runID,
		UseCase: useCase,
		Status:  "started",
	})
	return int64(len(m.runs)), nil
}

func (m *MockJournal) LogComplete(logID int64, status, errorMsg string, durationMs int64, finalParams models.Params) error {
	if m.LogCompleteFunc != nil {
		return m.LogCompleteFunc(logID, status, errorMsg, durationMs, finalParams)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if logID < 1 || int(logID) > len(m.runs) {
		return fmt.Errorf("run not found: %d", logID)
	}
	r := &m.runs[logID-1]
	r.Status = status
	r.ErrorMessage = errorMsg
	r.DurationMs = durationMs
	r.FinalParams = finalParams
	return nil
}

func (m *MockJournal) RecentRuns(limit int) ([]models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RunRecord
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Ensure MockJournal implements RunJournal interface
var _ interfaces.RunJournal = (*MockJournal)(nil)
