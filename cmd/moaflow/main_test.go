package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/themobileprof/moaflow/internal/mocks"
	"github.com/themobileprof/moaflow/internal/usecases"
	"github.com/themobileprof/moaflow/pkg/models"
)

const payUseCase = `{
	"%%serviceParameters": {"##token": "abc"},
	"@@pay": [
		{"%%open": {
			"%%module": "payments",
			"%%method": "/pay",
			"%%parameters": {"token": "##token"},
			"%%callback": [
				{"%%response.paymentId": {"##receipt": "%%response.paymentId"}}
			]
		}}
	]
}`

const modulesManifest = `scheme: bank
modules:
  - route: payments
    paths:
      /pay:
        replies:
          - data: {paymentId: xyz}
`

// setupWorkspace writes a config, a use case dir and a manifest into a temp dir
func setupWorkspace(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	useCaseDir := filepath.Join(tmpDir, "usecases")
	if err := os.MkdirAll(useCaseDir, 0755); err != nil {
		t.Fatalf("Failed to create use case dir: %v", err)
	}
	writeTestFile(t, filepath.Join(useCaseDir, "pay.json"), payUseCase)
	writeTestFile(t, filepath.Join(tmpDir, "modules.yaml"), modulesManifest)

	cfg := strings.Join([]string{
		"scheme: moaflow",
		"db_path: " + filepath.Join(tmpDir, "moaflow.db"),
		"use_case_dir: " + useCaseDir,
		"modules_manifest: " + filepath.Join(tmpDir, "modules.yaml"),
		"max_recursion: 4",
		"log_level: error",
		"",
	}, "\n")
	writeTestFile(t, filepath.Join(tmpDir, "config.yaml"), cfg)
	return tmpDir
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func execute(t *testing.T, workspace string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(workspace, "config.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "moaflow v"+version) {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestValidateShowsRoles(t *testing.T) {
	ws := setupWorkspace(t)

	out, err := execute(t, ws, "validate", filepath.Join(ws, "usecases", "pay.json"))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "@@pay: 1 statements, 1 service parameters") {
		t.Errorf("Missing summary in output: %s", out)
	}
	if !strings.Contains(out, "1. open") {
		t.Errorf("Missing statement role in output: %s", out)
	}
}

func TestValidateRejectsInvalidDefinition(t *testing.T) {
	ws := setupWorkspace(t)
	path := filepath.Join(ws, "broken.json")
	writeTestFile(t, path, `{"@@pay": []}`)

	if _, err := execute(t, ws, "validate", path); err == nil {
		t.Error("Expected validate to fail")
	}
}

func TestImportAndList(t *testing.T) {
	ws := setupWorkspace(t)

	out, err := execute(t, ws, "import")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, "Imported 1 use cases") {
		t.Errorf("Unexpected import output: %s", out)
	}

	out, err = execute(t, ws, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "pay") || !strings.Contains(out, "@@pay") {
		t.Errorf("Expected pay in list output: %s", out)
	}
}

func TestListEmpty(t *testing.T) {
	ws := setupWorkspace(t)

	out, err := execute(t, ws, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "No use cases imported") {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestRunPrintsFinalParams(t *testing.T) {
	ws := setupWorkspace(t)
	tracePath := filepath.Join(ws, "trace.jsonl")

	out, err := execute(t, ws, "run", "pay", "--trace", tracePath)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	var result struct {
		RunID  string         `json:"run_id"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, out)
	}
	if result.Params["##token"] != "abc" || result.Params["##receipt"] != "xyz" {
		t.Errorf("Unexpected params: %v", result.Params)
	}

	trace, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("Trace not written: %v", err)
	}
	if !strings.Contains(string(trace), result.RunID) {
		t.Errorf("Trace does not mention run %s", result.RunID)
	}

	out, err = execute(t, ws, "runs")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, result.RunID) || !strings.Contains(out, "completed") {
		t.Errorf("Expected completed run in journal: %s", out)
	}
}

func TestRunImportedUseCase(t *testing.T) {
	ws := setupWorkspace(t)
	if _, err := execute(t, ws, "import"); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if err := os.Remove(filepath.Join(ws, "usecases", "pay.json")); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	out, err := execute(t, ws, "run", "pay")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"##receipt": "xyz"`) {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestRunUnknownUseCase(t *testing.T) {
	ws := setupWorkspace(t)

	if _, err := execute(t, ws, "run", "receive"); err == nil {
		t.Error("Expected error for unknown use case")
	}
}

func TestRunInvalidDefinition(t *testing.T) {
	ws := setupWorkspace(t)
	writeTestFile(t, filepath.Join(ws, "usecases", "broken.json"), `{"%%serviceParameters": {}, "pay": []}`)

	if _, err := execute(t, ws, "run", "broken"); err == nil {
		t.Error("Expected error for invalid definition")
	}
}

func TestResolveUseCaseFallsBackToCatalog(t *testing.T) {
	store := mocks.NewMockUseCaseStore()
	def := models.Definition{
		"%%serviceParameters": map[string]any{"##token": "abc"},
		"@@pay":               []any{},
	}
	if err := store.Import("pay", "catalog", def); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	got, err := resolveUseCase(store, t.TempDir(), "pay")
	if err != nil {
		t.Fatalf("resolveUseCase failed: %v", err)
	}
	if name, _ := got.Name(); name != "@@pay" {
		t.Errorf("Expected @@pay from the catalog, got %s", name)
	}

	_, err = resolveUseCase(store, "", "receive")
	if !errors.Is(err, usecases.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestResolveUseCasePrefersDirectory(t *testing.T) {
	ws := setupWorkspace(t)
	store := mocks.NewMockUseCaseStore()
	store.GetFunc = func(name string) (models.Definition, error) {
		t.Errorf("Catalog consulted for %s", name)
		return nil, usecases.ErrNotFound
	}

	got, err := resolveUseCase(store, filepath.Join(ws, "usecases"), "pay")
	if err != nil {
		t.Fatalf("resolveUseCase failed: %v", err)
	}
	if params := got.InitialParams(); params["##token"] != "abc" {
		t.Errorf("Unexpected initial params: %v", params)
	}
}

func TestModulesListsRoutes(t *testing.T) {
	ws := setupWorkspace(t)

	out, err := execute(t, ws, "modules")
	if err != nil {
		t.Fatalf("modules failed: %v", err)
	}
	if !strings.Contains(out, "bank://payments") || !strings.Contains(out, "/pay") {
		t.Errorf("Expected payments route in output: %s", out)
	}
}

func TestRunTimesOutOnSlowModule(t *testing.T) {
	ws := setupWorkspace(t)
	slow := filepath.Join(ws, "slow.yaml")
	writeTestFile(t, slow, `scheme: bank
modules:
  - route: payments
    paths:
      /pay:
        replies:
          - data: {paymentId: xyz}
            delay_ms: 500
`)

	out, err := execute(t, ws, "run", "pay", "--modules", slow, "--timeout", "20ms")
	if err == nil {
		t.Fatalf("Expected timeout error, got output: %s", out)
	}
	if !strings.Contains(err.Error(), "did not finish") {
		t.Errorf("Unexpected error: %v", err)
	}
	if strings.Contains(out, "##receipt") {
		t.Errorf("Receipt assigned before the module replied: %s", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("Expected b, got %s", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("Expected empty, got %s", got)
	}
}
