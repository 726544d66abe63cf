package vscode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readSettings(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading settings: %v", err)
	}
	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		t.Fatalf("settings file is not valid JSON: %v", err)
	}
	return settings
}

func listBackups(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "bck.*.anaconda.settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestUpdateSettings_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "User", "settings.json")

	if err := UpdateSettings(path, PythonSettings("/envs/base/bin/python", "/opt/conda/bin/conda")); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	settings := readSettings(t, path)
	if settings["python.pythonPath"] != "/envs/base/bin/python" {
		t.Errorf("unexpected python.pythonPath: %v", settings["python.pythonPath"])
	}
	if settings["python.defaultInterpreterPath"] != "/envs/base/bin/python" {
		t.Errorf("unexpected python.defaultInterpreterPath: %v", settings["python.defaultInterpreterPath"])
	}
	if settings["python.condaPath"] != "/opt/conda/bin/conda" {
		t.Errorf("unexpected python.condaPath: %v", settings["python.condaPath"])
	}
	if settings["python.terminal.activateEnvironment"] != true {
		t.Errorf("unexpected activateEnvironment: %v", settings["python.terminal.activateEnvironment"])
	}

	// Fresh file means nothing to back up.
	if backups := listBackups(t, filepath.Dir(path)); len(backups) != 0 {
		t.Errorf("expected no backups for a fresh file, got %v", backups)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n    \"python.pythonPath\"") {
		t.Error("expected four-space indentation")
	}
}

func TestUpdateSettings_MergesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	original := `{"editor.fontSize": 12, "python.pythonPath": "/old/python"}`
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := UpdateSettings(path, PythonSettings("/new/python", "")); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	settings := readSettings(t, path)
	if settings["editor.fontSize"] != float64(12) {
		t.Errorf("expected unrelated keys kept, got %v", settings["editor.fontSize"])
	}
	if settings["python.pythonPath"] != "/new/python" {
		t.Errorf("expected python.pythonPath replaced, got %v", settings["python.pythonPath"])
	}
	if _, ok := settings["python.condaPath"]; ok {
		t.Error("expected no python.condaPath without a conda binary")
	}

	backups := listBackups(t, dir)
	if len(backups) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(backups))
	}
	backed, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(backed) != original {
		t.Errorf("backup should hold the pre-merge content, got %s", backed)
	}
}

func TestUpdateSettings_UnparseableAbortsAfterBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	broken := `{"editor.fontSize": 12,` // comments and trailing commas also land here
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}

	err := UpdateSettings(path, PythonSettings("/new/python", ""))
	if err == nil {
		t.Fatal("expected error for unparseable settings")
	}

	// The original file stays untouched and the backup exists.
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != broken {
		t.Errorf("settings file must stay untouched on abort, got %s", data)
	}
	backups := listBackups(t, dir)
	if len(backups) != 1 {
		t.Fatalf("expected backup before abort, got %d", len(backups))
	}
}

func TestUpdateSettings_PrunesBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	// Seed 12 old backups; timestamps sort lexicographically.
	seeded := []string{}
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("bck.202401010000%02d.anaconda.settings.json", i)
		seeded = append(seeded, name)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := UpdateSettings(path, map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	backups := listBackups(t, dir)
	if len(backups) != 10 {
		t.Fatalf("expected 10 backups after pruning, got %d: %v", len(backups), backups)
	}

	// The oldest seeded backups are gone; the fresh one survives.
	for _, name := range seeded[:3] {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s pruned", name)
		}
	}
}

func TestPythonSettings(t *testing.T) {
	values := PythonSettings("/python", "")
	if _, ok := values["python.condaPath"]; ok {
		t.Error("expected no condaPath key when conda binary is empty")
	}

	values = PythonSettings("/python", "/conda")
	if values["python.condaPath"] != "/conda" {
		t.Errorf("expected condaPath set, got %v", values["python.condaPath"])
	}
	opt, ok := values["python.experiments.optInto"].([]string)
	if !ok || len(opt) != 1 || opt[0] != "pythonTerminalEnvVarActivation" {
		t.Errorf("unexpected experiments opt-in: %v", values["python.experiments.optInto"])
	}
}

func TestInstallExtensionArgs(t *testing.T) {
	args := InstallExtensionArgs("/usr/bin/code")
	want := []string{"/usr/bin/code", "--install-extension", "ms-python.python"}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d", len(want), len(args))
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestDefaultSettingsPath(t *testing.T) {
	path, err := DefaultSettingsPath()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	want := filepath.Join("Code", "User", "settings.json")
	if !strings.HasSuffix(path, want) {
		t.Errorf("expected path ending in %s, got %s", want, path)
	}
}
