package ports

import (
	"context"
	"errors"
	"time"
)

// RiskLevel classifies how destructive a shell command can be.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// BackupStrategy identifies the snapshot routine taken before a dangerous
// command first executes.
type BackupStrategy string

const (
	BackupNone              BackupStrategy = "none"
	BackupDirectory         BackupStrategy = "backup_directory"
	BackupFile              BackupStrategy = "backup_file"
	BackupPermissions       BackupStrategy = "permission_snapshot"
	BackupOwnership         BackupStrategy = "ownership_snapshot"
	BackupGitStash          BackupStrategy = "git_stash"
	BackupGitBranch         BackupStrategy = "git_backup_branch"
	BackupResourceListing   BackupStrategy = "resource_listing"
)

// ConsentDecision is the resolved outcome of a consent request.
type ConsentDecision string

const (
	DecisionPending     ConsentDecision = "pending"
	DecisionAllowOnce   ConsentDecision = "allow_once"
	DecisionAllowExact  ConsentDecision = "allow_always_exact"
	DecisionAllowType   ConsentDecision = "allow_always_type"
	DecisionDeny        ConsentDecision = "deny"
	DecisionAlternative ConsentDecision = "alternative"
)

// ConsentRequest is one pending human-approval entry. It lives in the
// distributed store with a bounded TTL and is deleted on first resolution.
type ConsentRequest struct {
	ID                 string          `json:"id"`
	Command            string          `json:"command"`
	CommandType        string          `json:"command_type"`
	WorkingDir         string          `json:"working_dir"`
	Risk               RiskLevel       `json:"risk"`
	Warning            string          `json:"warning"`
	Consequences       []string        `json:"consequences,omitempty"`
	Alternatives       []string        `json:"alternatives,omitempty"`
	RollbackPossible   bool            `json:"rollback_possible"`
	CreatedAt          time.Time       `json:"created_at"`
	Decision           ConsentDecision `json:"decision"`
	AlternativeCommand string          `json:"alternative_command,omitempty"`
}

// ErrConsentNotFound is returned by ConsentStore.Get for unknown or expired ids.
var ErrConsentNotFound = errors.New("consent request not found")

// ConsentStore is the distributed, TTL-backed store mediating approvals across
// orchestrator processes. It is the sole source of truth for pending requests;
// any process-local cache is a fast path, never a fallback.
type ConsentStore interface {
	// Put persists a pending request with the given time-to-live.
	Put(ctx context.Context, req *ConsentRequest, ttl time.Duration) error

	// Get returns the current state of a request, ErrConsentNotFound when
	// it never existed or has expired.
	Get(ctx context.Context, id string) (*ConsentRequest, error)

	// Resolve records a decision. It reports false when the request was
	// already resolved or no longer exists (resolution is single-use).
	Resolve(ctx context.Context, id string, decision ConsentDecision, alternative string) (bool, error)

	// Delete removes a request regardless of state.
	Delete(ctx context.Context, id string) error
}

// PreferenceRule is a persisted "always allow" grant.
type PreferenceRule struct {
	UserID      string    `json:"user_id"`
	Command     string    `json:"command,omitempty"`      // exact-command grant
	CommandType string    `json:"command_type,omitempty"` // command-type grant
	CreatedAt   time.Time `json:"created_at"`
}

// PreferenceStore persists user/org auto-allow rules.
type PreferenceStore interface {
	Allow(ctx context.Context, rule PreferenceRule) error
	IsAllowed(ctx context.Context, userID, command, commandType string) (bool, error)
}

// ConsentEvent is emitted to the caller when a dangerous command needs a
// human decision.
type ConsentEvent struct {
	ConsentID        string    `json:"consent_id"`
	Command          string    `json:"command"`
	Shell            string    `json:"shell"`
	WorkingDir       string    `json:"cwd"`
	DangerLevel      RiskLevel `json:"danger_level"`
	Warning          string    `json:"warning"`
	Consequences     []string  `json:"consequences"`
	Alternatives     []string  `json:"alternatives"`
	RollbackPossible bool      `json:"rollback_possible"`
}

// CommandVerdict is the broker's answer for one command invocation.
type CommandVerdict struct {
	// Allowed is true when the command (or the approved alternative) may run.
	Allowed bool
	// Command is the command to actually execute; differs from the request
	// when the decision was an alternative.
	Command string
	// Risk is the classified level, RiskLow for non-dangerous commands.
	Risk RiskLevel
	// Dangerous reports whether the command matched the static registry.
	Dangerous bool
	// AutoAllowed reports that a stored preference skipped consent.
	AutoAllowed bool
	// Decision is the resolved consent decision when consent was required.
	Decision ConsentDecision
	// BackupLocation is where the pre-execution snapshot was written, if any.
	BackupLocation string
	// RestoreCommand reverses the backup, when the strategy supports rollback.
	RestoreCommand string
	// Reason explains denials and timeouts.
	Reason string
}

// AuthorizationRequest asks the broker to clear one command for execution.
type AuthorizationRequest struct {
	UserID     string
	Command    string
	WorkingDir string
	Workspace  string
	// Notify is invoked when a consent event must reach the caller; nil when
	// no interactive surface exists (the request then resolves by store poll
	// or timeout).
	Notify func(ConsentEvent)
}

// CommandGuard mediates human approval for dangerous commands.
type CommandGuard interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*CommandVerdict, error)
}
