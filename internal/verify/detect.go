// Package verify detects per-project check commands and runs them in a fixed
// order after the engine mutates files.
package verify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"fixpoint/internal/agent/ports"
)

// DetectProjectCommands probes manifest files under workspace and returns the
// checks this project supports. Detection prefers explicit project scripts
// over toolchain defaults.
func (v *Verifier) DetectProjectCommands(ctx context.Context, workspace string) ports.ProjectCommands {
	if commands, ok := v.detectNode(workspace); ok {
		return commands
	}
	if commands, ok := v.detectGo(workspace); ok {
		return commands
	}
	if commands, ok := v.detectPython(workspace); ok {
		return commands
	}
	if commands, ok := v.detectRust(workspace); ok {
		return commands
	}
	return ports.ProjectCommands{}
}

func (v *Verifier) detectNode(workspace string) (ports.ProjectCommands, bool) {
	manifestPath := filepath.Join(workspace, "package.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return ports.ProjectCommands{}, false
	}

	var manifest struct {
		Scripts         map[string]string `json:"scripts"`
		DevDependencies map[string]string `json:"devDependencies"`
		Dependencies    map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ports.ProjectCommands{}, false
	}

	commands := ports.ProjectCommands{}
	hasDep := func(name string) bool {
		_, dev := manifest.DevDependencies[name]
		_, prod := manifest.Dependencies[name]
		return dev || prod
	}
	script := func(names ...string) string {
		for _, name := range names {
			if _, ok := manifest.Scripts[name]; ok {
				return "npm run " + name
			}
		}
		return ""
	}

	commands.Typecheck = script("typecheck", "type-check", "tsc")
	if commands.Typecheck == "" && (hasDep("typescript") || fileExists(filepath.Join(workspace, "tsconfig.json"))) {
		commands.Typecheck = "npx tsc --noEmit"
	}
	commands.Lint = script("lint")
	if commands.Lint == "" && hasDep("eslint") {
		commands.Lint = "npx eslint ."
	}
	commands.Test = script("test")
	commands.Build = script("build")
	return commands, true
}

func (v *Verifier) detectGo(workspace string) (ports.ProjectCommands, bool) {
	if !fileExists(filepath.Join(workspace, "go.mod")) {
		return ports.ProjectCommands{}, false
	}
	return ports.ProjectCommands{
		Typecheck: "go vet ./...",
		Test:      "go test ./...",
		Build:     "go build ./...",
	}, true
}

func (v *Verifier) detectPython(workspace string) (ports.ProjectCommands, bool) {
	hasPyproject := fileExists(filepath.Join(workspace, "pyproject.toml"))
	hasSetup := fileExists(filepath.Join(workspace, "setup.py"))
	hasRequirements := fileExists(filepath.Join(workspace, "requirements.txt"))
	if !hasPyproject && !hasSetup && !hasRequirements {
		return ports.ProjectCommands{}, false
	}

	commands := ports.ProjectCommands{}
	if hasPyproject {
		data, _ := os.ReadFile(filepath.Join(workspace, "pyproject.toml"))
		content := string(data)
		if containsAny(content, "[tool.mypy]") {
			commands.Typecheck = "mypy ."
		}
		if containsAny(content, "[tool.ruff]") {
			commands.Lint = "ruff check ."
		}
	}
	if fileExists(filepath.Join(workspace, "pytest.ini")) ||
		dirExists(filepath.Join(workspace, "tests")) ||
		hasPyproject {
		commands.Test = "python -m pytest"
	}
	return commands, true
}

func (v *Verifier) detectRust(workspace string) (ports.ProjectCommands, bool) {
	if !fileExists(filepath.Join(workspace, "Cargo.toml")) {
		return ports.ProjectCommands{}, false
	}
	return ports.ProjectCommands{
		Typecheck: "cargo check",
		Lint:      "cargo clippy -- -D warnings",
		Test:      "cargo test",
		Build:     "cargo build",
	}, true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func containsAny(content string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(content, s) {
			return true
		}
	}
	return false
}
