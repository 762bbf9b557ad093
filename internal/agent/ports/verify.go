package ports

import "context"

// VerificationKind identifies one class of project check.
type VerificationKind string

const (
	VerifyTypecheck VerificationKind = "typecheck"
	VerifyLint      VerificationKind = "lint"
	VerifyTest      VerificationKind = "test"
	VerifyBuild     VerificationKind = "build"
	VerifySyntax    VerificationKind = "syntax"
	VerifyCustom    VerificationKind = "custom"
)

// VerificationResult is produced fresh on each verification pass and never
// mutated afterward.
type VerificationResult struct {
	Kind     VerificationKind `json:"kind"`
	Command  string           `json:"command"`
	Success  bool             `json:"success"`
	Output   string           `json:"output"` // truncated raw output
	Errors   []string         `json:"errors,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// ProjectCommands holds the detected per-project check commands. Empty string
// means the check is absent for this project.
type ProjectCommands struct {
	Typecheck string `json:"typecheck,omitempty"`
	Lint      string `json:"lint,omitempty"`
	Test      string `json:"test,omitempty"`
	Build     string `json:"build,omitempty"`
}

// IsEmpty reports whether no check command was detected at all.
func (c ProjectCommands) IsEmpty() bool {
	return c.Typecheck == "" && c.Lint == "" && c.Test == "" && c.Build == ""
}

// Verifier runs project-specific checks after the engine mutates files.
type Verifier interface {
	// DetectProjectCommands probes manifest files under workspace.
	DetectProjectCommands(ctx context.Context, workspace string) ProjectCommands

	// Verify runs typecheck first and short-circuits the remaining checks
	// if it fails; otherwise lint, tests (if runTests), then build.
	Verify(ctx context.Context, workspace string, commands ProjectCommands, runTests bool) []VerificationResult

	// QuickValidate performs a syntax-only check of the given files. Used
	// for low-complexity tasks to skip the cost of a full pass.
	QuickValidate(ctx context.Context, workspace string, files []string) (bool, string)
}
