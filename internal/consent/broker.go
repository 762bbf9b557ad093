package consent

import (
	"context"
	"fmt"
	"time"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/danger"
	"fixpoint/internal/shared/logging"
	"fixpoint/internal/shared/utils/id"
)

const (
	// DefaultTTL bounds how long a consent request stays answerable. An
	// unanswered request denies by default when it expires.
	DefaultTTL = 5 * time.Minute
	// DefaultPollInterval is how often the broker re-reads the store while
	// waiting for a decision. The store is the sole authority: decisions made
	// by any process become visible within one poll.
	DefaultPollInterval = 500 * time.Millisecond
)

// BrokerConfig configures the consent broker.
type BrokerConfig struct {
	TTL          time.Duration
	PollInterval time.Duration
}

// Broker implements ports.CommandGuard: it classifies commands, short-cuts
// via stored preferences, and otherwise blocks on a human decision recorded
// in the consent store.
type Broker struct {
	store       ports.ConsentStore
	preferences ports.PreferenceStore
	backupper   *danger.Backupper
	audit       *AuditLog
	logger      logging.Logger
	ttl         time.Duration
	poll        time.Duration
	now         func() time.Time
}

var _ ports.CommandGuard = (*Broker)(nil)

// NewBroker wires the consent workflow together. audit may be nil.
func NewBroker(store ports.ConsentStore, preferences ports.PreferenceStore, backupper *danger.Backupper, audit *AuditLog, config BrokerConfig) *Broker {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Broker{
		store:       store,
		preferences: preferences,
		backupper:   backupper,
		audit:       audit,
		logger:      logging.NewAuditLogger("broker"),
		ttl:         ttl,
		poll:        poll,
		now:         time.Now,
	}
}

// Authorize clears one command for execution. Non-dangerous commands pass
// through immediately; dangerous ones need a stored preference or a fresh
// human decision, plus a pre-execution backup.
func (b *Broker) Authorize(ctx context.Context, req ports.AuthorizationRequest) (*ports.CommandVerdict, error) {
	classification := danger.Classify(req.Command)
	if !classification.Dangerous {
		return &ports.CommandVerdict{
			Allowed: true,
			Command: req.Command,
			Risk:    ports.RiskLow,
		}, nil
	}
	spec := classification.Spec

	// Stored preference short-cut.
	if b.preferences != nil {
		allowed, err := b.preferences.IsAllowed(ctx, req.UserID, req.Command, spec.Type)
		if err != nil {
			b.logger.Warn("Preference lookup failed: %v", err)
		} else if allowed {
			verdict := &ports.CommandVerdict{
				Allowed:     true,
				Command:     req.Command,
				Risk:        classification.Risk,
				Dangerous:   true,
				AutoAllowed: true,
			}
			if blocked := b.runBackup(ctx, spec, req, verdict); blocked != nil {
				return blocked, nil
			}
			b.recordAudit(req, spec, verdict)
			return verdict, nil
		}
	}

	// Fresh consent round trip through the store.
	consentReq := &ports.ConsentRequest{
		ID:               id.NewConsentID(),
		Command:          req.Command,
		CommandType:      spec.Type,
		WorkingDir:       req.WorkingDir,
		Risk:             classification.Risk,
		Warning:          spec.Warning,
		Consequences:     append([]string(nil), spec.Consequences...),
		Alternatives:     append([]string(nil), spec.Alternatives...),
		RollbackPossible: spec.Rollback,
		CreatedAt:        b.now(),
		Decision:         ports.DecisionPending,
	}
	if err := b.store.Put(ctx, consentReq, b.ttl); err != nil {
		return nil, fmt.Errorf("store consent request: %w", err)
	}
	defer func() { _ = b.store.Delete(context.WithoutCancel(ctx), consentReq.ID) }()

	if req.Notify != nil {
		req.Notify(ports.ConsentEvent{
			ConsentID:        consentReq.ID,
			Command:          req.Command,
			Shell:            "bash",
			WorkingDir:       req.WorkingDir,
			DangerLevel:      classification.Risk,
			Warning:          spec.Warning,
			Consequences:     consentReq.Consequences,
			Alternatives:     consentReq.Alternatives,
			RollbackPossible: spec.Rollback,
		})
	}

	decision, alternative, err := b.awaitDecision(ctx, consentReq.ID)
	if err != nil {
		return nil, err
	}

	verdict := &ports.CommandVerdict{
		Command:   req.Command,
		Risk:      classification.Risk,
		Dangerous: true,
		Decision:  decision,
	}

	switch decision {
	case ports.DecisionDeny:
		verdict.Reason = "the user denied this command"
	case ports.DecisionPending:
		verdict.Reason = fmt.Sprintf("no consent decision within %v; denying by default", b.ttl)
	case ports.DecisionAlternative:
		if alternative == "" {
			verdict.Reason = "an alternative was chosen but no command was provided"
			break
		}
		verdict.Allowed = true
		verdict.Command = alternative
	case ports.DecisionAllowOnce, ports.DecisionAllowExact, ports.DecisionAllowType:
		verdict.Allowed = true
		b.persistPreference(ctx, req.UserID, req.Command, spec.Type, decision)
	default:
		verdict.Reason = fmt.Sprintf("unrecognized consent decision %q", decision)
	}

	if verdict.Allowed {
		if blocked := b.runBackup(ctx, spec, req, verdict); blocked != nil {
			b.recordAudit(req, spec, blocked)
			return blocked, nil
		}
	}

	b.recordAudit(req, spec, verdict)
	return verdict, nil
}

// awaitDecision polls the store until the request resolves, expires or the
// context ends. Expiry and context cancellation both deny.
func (b *Broker) awaitDecision(ctx context.Context, consentID string) (ports.ConsentDecision, string, error) {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	deadline := b.now().Add(b.ttl)

	for {
		select {
		case <-ctx.Done():
			return ports.DecisionDeny, "", ctx.Err()
		case <-ticker.C:
		}

		current, err := b.store.Get(ctx, consentID)
		if err == ports.ErrConsentNotFound {
			// Expired or externally removed: deny by default.
			return ports.DecisionPending, "", nil
		}
		if err != nil {
			b.logger.Warn("Consent store read failed: %v", err)
			continue
		}
		if current.Decision != ports.DecisionPending {
			return current.Decision, current.AlternativeCommand, nil
		}
		if b.now().After(deadline) {
			return ports.DecisionPending, "", nil
		}
	}
}

// runBackup executes the pre-execution snapshot. A failed backup blocks
// critical-risk commands outright; lower risks proceed with the failure noted
// so the decision stays with the human who already approved.
func (b *Broker) runBackup(ctx context.Context, spec *danger.CommandSpec, req ports.AuthorizationRequest, verdict *ports.CommandVerdict) *ports.CommandVerdict {
	if b.backupper == nil || spec.Backup == ports.BackupNone {
		return nil
	}

	result, err := b.backupper.Execute(ctx, spec, verdict.Command, req.WorkingDir)
	if err != nil {
		b.logger.Error("Backup failed for %q: %v", verdict.Command, err)
		if verdict.Risk == ports.RiskCritical {
			return &ports.CommandVerdict{
				Command:   verdict.Command,
				Risk:      verdict.Risk,
				Dangerous: true,
				Decision:  verdict.Decision,
				Reason:    fmt.Sprintf("pre-execution backup failed (%v); refusing to run a critical-risk command without one", err),
			}
		}
		verdict.Reason = fmt.Sprintf("backup failed (%v); proceeding on explicit approval", err)
		return nil
	}

	verdict.BackupLocation = result.Location
	verdict.RestoreCommand = result.RestoreCommand
	return nil
}

func (b *Broker) persistPreference(ctx context.Context, userID, command, commandType string, decision ports.ConsentDecision) {
	if b.preferences == nil {
		return
	}
	rule := ports.PreferenceRule{UserID: userID, CreatedAt: b.now()}
	switch decision {
	case ports.DecisionAllowExact:
		rule.Command = command
	case ports.DecisionAllowType:
		rule.CommandType = commandType
	default:
		return
	}
	if err := b.preferences.Allow(ctx, rule); err != nil {
		b.logger.Warn("Failed to persist preference: %v", err)
	}
}

func (b *Broker) recordAudit(req ports.AuthorizationRequest, spec *danger.CommandSpec, verdict *ports.CommandVerdict) {
	if b.audit == nil {
		return
	}
	b.audit.Record(AuditEntry{
		Timestamp:      b.now(),
		UserID:         req.UserID,
		Command:        verdict.Command,
		CommandType:    spec.Type,
		Risk:           verdict.Risk,
		Decision:       verdict.Decision,
		AutoAllowed:    verdict.AutoAllowed,
		Allowed:        verdict.Allowed,
		BackupLocation: verdict.BackupLocation,
		Reason:         verdict.Reason,
	})
}
