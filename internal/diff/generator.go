// Package diff renders unified diffs of file edits for display in the CLI
// transcript and the consent prompt.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const maxDiffInput = 10 * 1024 * 1024

// Result contains the rendered diff and its statistics.
type Result struct {
	Unified      string
	AddedLines   int
	DeletedLines int
	IsBinary     bool
}

// Generator renders unified diffs, optionally colorized for terminals.
type Generator struct {
	colorEnabled bool
}

// NewGenerator returns a Generator. colorEnabled controls ANSI output.
func NewGenerator(colorEnabled bool) *Generator {
	return &Generator{colorEnabled: colorEnabled}
}

// Unified produces a unified diff between oldContent and newContent.
func (g *Generator) Unified(oldContent, newContent, filename string) *Result {
	if oldContent == newContent {
		return &Result{}
	}
	if isBinary(oldContent) || isBinary(newContent) {
		return &Result{
			Unified:  fmt.Sprintf("Binary file %s changed", filename),
			IsBinary: true,
		}
	}
	if len(oldContent) > maxDiffInput || len(newContent) > maxDiffInput {
		return &Result{
			Unified: fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ file too large, diff skipped @@\n", filename, filename),
		}
	}

	dmp := diffmatchpatch.New()
	oldRunes, newRunes, lines := dmp.DiffLinesToRunes(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(oldRunes, newRunes, false), lines)

	var b strings.Builder
	b.WriteString(g.paint("--- a/"+filename+"\n", color.FgRed))
	b.WriteString(g.paint("+++ b/"+filename+"\n", color.FgGreen))

	added, deleted := 0, 0
	for _, d := range diffs {
		for _, line := range splitKeepNonEmpty(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				b.WriteString(g.paint("+"+line+"\n", color.FgGreen))
				added++
			case diffmatchpatch.DiffDelete:
				b.WriteString(g.paint("-"+line+"\n", color.FgRed))
				deleted++
			default:
				b.WriteString(" " + line + "\n")
			}
		}
	}

	return &Result{
		Unified:      b.String(),
		AddedLines:   added,
		DeletedLines: deleted,
	}
}

// Summary returns a one-line change description.
func (r *Result) Summary() string {
	if r.IsBinary {
		return "binary file changed"
	}
	if r.AddedLines == 0 && r.DeletedLines == 0 {
		return "no changes"
	}
	var parts []string
	if r.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d", r.AddedLines))
	}
	if r.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d", r.DeletedLines))
	}
	return strings.Join(parts, " ")
}

func (g *Generator) paint(text string, attr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(attr).Sprint(text)
}

func splitKeepNonEmpty(text string) []string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

func isBinary(content string) bool {
	limit := len(content)
	if limit > 8000 {
		limit = 8000
	}
	return strings.ContainsRune(content[:limit], 0)
}
