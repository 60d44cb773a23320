package models

import "time"

// Manifest declares scripted modules the router can dispatch to
type Manifest struct {
	Scheme  string       `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	Modules []ModuleSpec `yaml:"modules" json:"modules"`
}

// ModuleSpec describes one routable module: its host route and the replies
// each of its paths produces
type ModuleSpec struct {
	Route       string               `yaml:"route" json:"route"`
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	Paths       map[string]*PathSpec `yaml:"paths" json:"paths"`
}

// PathSpec holds the replies for one path, returned in order.
// The last reply repeats once the list is exhausted.
type PathSpec struct {
	Replies []Reply `yaml:"replies" json:"replies"`
}

// Reply is a scripted module response
type Reply struct {
	Data      map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
	ErrorCode int            `yaml:"error_code,omitempty" json:"error_code,omitempty"`
	Status    int            `yaml:"status,omitempty" json:"status,omitempty"` // HTTP status, mapped to an error code
	DelayMs   int            `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
}

// UseCaseRecord is a catalog entry for an imported definition
type UseCaseRecord struct {
	Name       string     `json:"name"`
	Key        string     `json:"key"` // @@-prefixed statement list key
	Source     string     `json:"source"`
	Definition Definition `json:"definition"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RunRecord is one journaled use case run
type RunRecord struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	UseCase      string    `json:"use_case"`
	Status       string    `json:"status"` // started, completed, failed
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	FinalParams  Params    `json:"final_params,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}
