// Package vscode updates VS Code user settings for Anaconda environments.
package vscode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// pythonExtensionID is the marketplace ID of the Python extension.
	pythonExtensionID = "ms-python.python"

	backupPrefix = "bck."
	backupSuffix = ".anaconda.settings.json"
	backupKeep   = 10
)

// DefaultSettingsPath returns the VS Code user settings file location for
// this platform.
func DefaultSettingsPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "Code", "User", "settings.json"), nil
}

// PythonSettings returns the interpreter settings pointing VS Code at the
// given Python executable and optional conda binary.
func PythonSettings(pythonPath, condaPath string) map[string]interface{} {
	values := map[string]interface{}{
		"python.experiments.optInto":                   []string{"pythonTerminalEnvVarActivation"},
		"python.terminal.activateEnvInCurrentTerminal": true,
		"python.terminal.activateEnvironment":          true,
		"python.pythonPath":                            pythonPath,
		"python.defaultInterpreterPath":                pythonPath,
	}
	if condaPath != "" {
		values["python.condaPath"] = condaPath
	}
	return values
}

// InstallExtensionArgs returns the argv that installs the Python extension
// through the given VS Code binary.
func InstallExtensionArgs(binary string) []string {
	return []string{binary, "--install-extension", pythonExtensionID}
}

// UpdateSettings merges values into the settings file at path. A missing
// file starts empty; an existing one is backed up first, so an aborted merge
// (unparseable settings) never loses data. The result is written with sorted
// keys and four-space indentation, the way VS Code itself writes it.
func UpdateSettings(path string, values map[string]interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	settings := map[string]interface{}{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := backupSettings(dir, data); err != nil {
			return err
		}
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("existing settings file is not valid JSON (backup written): %w", err)
		}
	case os.IsNotExist(err):
		// First run, nothing to back up.
	default:
		return err
	}

	for key, value := range values {
		settings[key] = value
	}

	out, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}

// backupSettings writes a timestamped copy of the current settings into the
// settings directory and prunes all but the newest backups.
func backupSettings(dir string, data []byte) error {
	stamp := time.Now().Format("20060102150405")
	name := backupPrefix + stamp + backupSuffix
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return err
	}
	pruneBackups(dir)
	return nil
}

// pruneBackups keeps the backupKeep newest backup files. The timestamp
// format sorts lexicographically, so a reverse name sort is newest-first.
func pruneBackups(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			backups = append(backups, name)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	for _, name := range backups[min(len(backups), backupKeep):] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
