package builtin

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fixpoint/internal/agent/ports"
)

const (
	maxSearchMatches  = 100
	maxSearchFileSize = 1 * 1024 * 1024
)

var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, "__pycache__": true, ".venv": true, "target": true,
	".fixpoint-backups": true,
}

type search struct {
	workspace *Workspace
}

// NewSearch returns the search_files tool: regex matching over workspace files.
func NewSearch(workspace *Workspace) ports.ToolExecutor {
	return &search{workspace: workspace}
}

func (t *search) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	pattern, ok := stringArg(call.Arguments, "pattern")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'pattern'")}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("invalid pattern: %w", err)}, nil
	}

	root := t.workspace.Root()
	if dir, ok := stringArg(call.Arguments, "path"); ok {
		resolved, err := t.workspace.Resolve(dir)
		if err != nil {
			return &ports.ToolResult{CallID: call.ID, Error: err}, nil
		}
		root = resolved
	}

	var globRe *regexp.Regexp
	if glob, ok := stringArg(call.Arguments, "glob"); ok {
		globRe = globToRegexp(glob)
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= maxSearchMatches {
			return filepath.SkipAll
		}
		if globRe != nil && !globRe.MatchString(d.Name()) {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxSearchFileSize {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.scanFile(path, re, &matches)
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return &ports.ToolResult{CallID: call.ID, Error: walkErr}, nil
	}

	content := strings.Join(matches, "\n")
	if content == "" {
		content = "no matches found"
	} else if len(matches) >= maxSearchMatches {
		content += fmt.Sprintf("\n... (stopped at %d matches)", maxSearchMatches)
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		Content:  content,
		Metadata: map[string]any{"matches": len(matches)},
	}, nil
}

func (t *search) scanFile(path string, re *regexp.Regexp, matches *[]string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			*matches = append(*matches, fmt.Sprintf("%s:%d: %s", t.workspace.Rel(path), lineNo, strings.TrimSpace(line)))
			if len(*matches) >= maxSearchMatches {
				return
			}
		}
	}
}

// globToRegexp converts a simple filename glob (* and ?) to a regexp.
func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil
	}
	return re
}

func (t *search) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "search_files",
		Description: "Search workspace files for a regular expression, returning file:line matches",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"pattern": {Type: "string", Description: "Regular expression to search for"},
				"path":    {Type: "string", Description: "Directory to search under, relative to the workspace root"},
				"glob":    {Type: "string", Description: "Filename glob filter, e.g. *.go"},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *search) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "search_files", Version: "1.0.0", Category: "file_operations",
	}
}
