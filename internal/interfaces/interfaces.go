package interfaces

import (
	"github.com/themobileprof/moaflow/internal/urlvalue"
	"github.com/themobileprof/moaflow/pkg/models"
)

// Completion receives a module's response. It is called at most once per open.
type Completion func(resp models.Response)

// Router resolves a module URL and opens the module asynchronously
type Router interface {
	// Open dispatches u and returns immediately; done fires later
	Open(u urlvalue.URL, done Completion)
}

// Module is a routable feature unit addressed by URL host and path
type Module interface {
	// Route is the URL host the module answers to
	Route() string
	// Paths lists the URL paths (methods) the module declares
	Paths() []string
	// Open handles one request; params carry the query plus "url"
	Open(path string, params map[string]string, done Completion)
}

// UseCaseStore handles loading, storage and retrieval of use case definitions
type UseCaseStore interface {
	// LoadFromFile reads and decodes a JSON or YAML definition file
	LoadFromFile(path string) (models.Definition, error)
	// Import saves a definition under name
	Import(name, source string, def models.Definition) error
	// Get retrieves a definition by name
	Get(name string) (models.Definition, error)
	// List returns all imported definitions
	List() ([]models.UseCaseRecord, error)
}

// RunJournal records the start and outcome of use case runs
type RunJournal interface {
	// LogStart records the beginning of a run
	LogStart(runID, useCase string) (int64, error)
	// LogComplete records the outcome of a run
	LogComplete(logID int64, status, errorMsg string, durationMs int64, finalParams models.Params) error
	// RecentRuns returns the latest runs, newest first
	RecentRuns(limit int) ([]models.RunRecord, error)
}
