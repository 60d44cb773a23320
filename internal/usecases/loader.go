package usecases

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/pkg/models"
)

// ErrNotFound is returned when a use case is neither on disk nor imported
var ErrNotFound = errors.New("use case not found")

// Extensions tried, in order, when loading a named use case
var Extensions = []string{".json", ".yaml", ".yml"}

// Loader handles use case loading and storage
type Loader struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLoader creates a new use case loader
func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db, logger: zap.NewNop()}
}

// Ensure Loader implements UseCaseStore interface
var _ interfaces.UseCaseStore = (*Loader)(nil)

// SetLogger sets the loader logger
func (l *Loader) SetLogger(logger *zap.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// LoadFromFile reads and decodes a JSON or YAML use case file.
// JSON numbers keep their integer or decimal form.
func (l *Loader) LoadFromFile(path string) (models.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read use case file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		return decodeJSON(data)
	}
}

// LoadNamed reads <dir>/<name> with the first extension that exists
func LoadNamed(dir, name string) (models.Definition, error) {
	l := &Loader{logger: zap.NewNop()}
	for _, ext := range Extensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return l.LoadFromFile(path)
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, dir)
}

func decodeJSON(data []byte) (models.Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var def models.Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse use case JSON: %w", err)
	}
	return def, nil
}

func decodeYAML(data []byte) (models.Definition, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse use case YAML: %w", err)
	}
	m, ok := models.AsMap(models.Normalize(raw))
	if !ok {
		return nil, fmt.Errorf("failed to parse use case YAML: top level is not a mapping")
	}
	return models.Definition(m), nil
}

// Import validates a definition and stores it under name
func (l *Loader) Import(name, source string, def models.Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("use case %s: %w", name, err)
	}
	key, _ := def.Name()

	jsonContent, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal use case: %w", err)
	}

	_, err = l.db.Exec(`
		INSERT INTO use_cases (name, use_case_key, source, json_content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			use_case_key = excluded.use_case_key,
			source = excluded.source,
			json_content = excluded.json_content,
			updated_at = strftime('%s', 'now')
	`, name, key, source, string(jsonContent))
	if err != nil {
		return fmt.Errorf("failed to insert use case: %w", err)
	}

	l.logger.Debug("Imported use case", zap.String("name", name), zap.String("source", source))
	return nil
}

// Get retrieves an imported use case by name
func (l *Loader) Get(name string) (models.Definition, error) {
	var jsonContent string
	err := l.db.QueryRow("SELECT json_content FROM use_cases WHERE name = ?", name).Scan(&jsonContent)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query use case: %w", err)
	}
	return decodeJSON([]byte(jsonContent))
}

// Delete removes an imported use case
func (l *Loader) Delete(name string) error {
	if _, err := l.db.Exec("DELETE FROM use_cases WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete use case: %w", err)
	}
	return nil
}

// List returns all imported use cases ordered by name
func (l *Loader) List() ([]models.UseCaseRecord, error) {
	rows, err := l.db.Query(`
		SELECT name, use_case_key, source, json_content, updated_at
		FROM use_cases
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query use cases: %w", err)
	}
	defer rows.Close()

	var records []models.UseCaseRecord
	for rows.Next() {
		var r models.UseCaseRecord
		var jsonContent string
		var updatedAt int64
		if err := rows.Scan(&r.Name, &r.Key, &r.Source, &jsonContent, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan use case: %w", err)
		}
		if r.Definition, err = decodeJSON([]byte(jsonContent)); err != nil {
			return nil, err
		}
		r.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// LoadDir parses every use case file in dir concurrently and imports the
// valid ones. It returns the imported names; the first parse or import
// failure aborts the import.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]string, error) {
	paths, err := useCaseFiles(dir)
	if err != nil {
		return nil, err
	}

	defs := make([]models.Definition, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			def, err := l.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			defs[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// sqlite writes stay on one goroutine
	names := make([]string, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		name := NameFromPath(path)
		if err := l.Import(name, path, defs[i]); err != nil {
			return names, err
		}
		names = append(names, name)
	}

	l.logger.Info("Imported use cases", zap.String("dir", dir), zap.Int("count", len(names)))
	return names, nil
}

// NameFromPath returns the catalog name of a use case file
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsUseCaseFile reports whether path has a use case extension
func IsUseCaseFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func useCaseFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read use case dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsUseCaseFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
