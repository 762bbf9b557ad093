package consent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/shared/logging"
)

// AuditEntry is one line of the consent audit trail.
type AuditEntry struct {
	Timestamp      time.Time             `json:"timestamp"`
	UserID         string                `json:"user_id,omitempty"`
	Command        string                `json:"command"`
	CommandType    string                `json:"command_type,omitempty"`
	Risk           ports.RiskLevel       `json:"risk"`
	Decision       ports.ConsentDecision `json:"decision,omitempty"`
	AutoAllowed    bool                  `json:"auto_allowed,omitempty"`
	Allowed        bool                  `json:"allowed"`
	BackupLocation string                `json:"backup_location,omitempty"`
	Reason         string                `json:"reason,omitempty"`
}

// AuditLog appends consent outcomes to a JSONL file. Write failures are
// logged, never propagated: audit must not block execution.
type AuditLog struct {
	path   string
	mu     sync.Mutex
	logger logging.Logger
}

// NewAuditLog writes entries to path.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{
		path:   path,
		logger: logging.NewAuditLogger("consent"),
	}
}

// Record appends one entry.
func (a *AuditLog) Record(entry AuditEntry) {
	if a == nil || a.path == "" {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		a.logger.Warn("Failed to encode audit entry: %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		a.logger.Warn("Failed to create audit directory: %v", err)
		return
	}
	file, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		a.logger.Warn("Failed to open audit log: %v", err)
		return
	}
	defer func() { _ = file.Close() }()
	if _, err := file.Write(append(data, '\n')); err != nil {
		a.logger.Warn("Failed to write audit entry: %v", err)
	}
}
