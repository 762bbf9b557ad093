package consent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
	"fixpoint/internal/danger"
)

func fastConfig() BrokerConfig {
	return BrokerConfig{TTL: 2 * time.Second, PollInterval: 5 * time.Millisecond}
}

// resolveOnNotify answers the consent request as soon as the broker announces
// it, the way an interactive session would.
func resolveOnNotify(store ports.ConsentStore, decision ports.ConsentDecision, alternative string) func(ports.ConsentEvent) {
	return func(event ports.ConsentEvent) {
		_, _ = store.Resolve(context.Background(), event.ConsentID, decision, alternative)
	}
}

func TestAuthorizeSafeCommandPassesThrough(t *testing.T) {
	broker := NewBroker(NewMemoryStore(), nil, nil, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "go test ./...",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.False(t, verdict.Dangerous)
	assert.Equal(t, ports.RiskLow, verdict.Risk)
}

func TestAuthorizeDeniedCommand(t *testing.T) {
	store := NewMemoryStore()
	broker := NewBroker(store, nil, nil, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "rm -rf build",
		Notify:  resolveOnNotify(store, ports.DecisionDeny, ""),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.True(t, verdict.Dangerous)
	assert.Equal(t, ports.DecisionDeny, verdict.Decision)
	assert.Contains(t, verdict.Reason, "denied")
}

func TestAuthorizeAllowOnce(t *testing.T) {
	store := NewMemoryStore()
	prefs := newPrefsStore(t)
	broker := NewBroker(store, prefs, nil, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "rm -rf build",
		Notify:  resolveOnNotify(store, ports.DecisionAllowOnce, ""),
	})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)

	allowed, err := prefs.IsAllowed(context.Background(), "u1", "rm -rf build", "recursive_delete")
	require.NoError(t, err)
	assert.False(t, allowed, "allow-once never persists a preference")
}

func TestAuthorizeAllowExactPersistsPreference(t *testing.T) {
	store := NewMemoryStore()
	prefs := newPrefsStore(t)
	broker := NewBroker(store, prefs, nil, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "rm -rf build",
		Notify:  resolveOnNotify(store, ports.DecisionAllowExact, ""),
	})
	require.NoError(t, err)
	require.True(t, verdict.Allowed)

	// The second round never reaches the store.
	second, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "rm -rf build",
	})
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.True(t, second.AutoAllowed)
}

func TestAuthorizeAlternativeCommand(t *testing.T) {
	store := NewMemoryStore()
	broker := NewBroker(store, nil, nil, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "git push --force origin main",
		Notify:  resolveOnNotify(store, ports.DecisionAlternative, "git push --force-with-lease origin main"),
	})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, "git push --force-with-lease origin main", verdict.Command)
}

func TestAuthorizeTimesOutToDeny(t *testing.T) {
	store := NewMemoryStore()
	broker := NewBroker(store, nil, nil, nil, BrokerConfig{
		TTL:          40 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "rm -rf build",
	})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ports.DecisionPending, verdict.Decision)
	assert.Contains(t, verdict.Reason, "denying by default")
}

func TestAuthorizeCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	broker := NewBroker(store, nil, nil, nil, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := broker.Authorize(ctx, ports.AuthorizationRequest{
		UserID:  "u1",
		Command: "rm -rf build",
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthorizeCriticalBlockedOnBackupFailure(t *testing.T) {
	store := NewMemoryStore()
	failingRunner := func(ctx context.Context, dir, name string, args ...string) (string, error) {
		return "", fmt.Errorf("not a git repository")
	}
	backupper := danger.NewBackupperWith(failingRunner, nil)
	broker := NewBroker(store, nil, backupper, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:     "u1",
		Command:    "git push --force origin main",
		WorkingDir: t.TempDir(),
		Notify:     resolveOnNotify(store, ports.DecisionAllowOnce, ""),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed, "critical-risk commands never run without a backup")
	assert.Contains(t, verdict.Reason, "backup failed")
}

func TestAuthorizeHighRiskProceedsOnBackupFailure(t *testing.T) {
	store := NewMemoryStore()
	failingRunner := func(ctx context.Context, dir, name string, args ...string) (string, error) {
		return "", fmt.Errorf("not a git repository")
	}
	backupper := danger.NewBackupperWith(failingRunner, nil)
	broker := NewBroker(store, nil, backupper, nil, fastConfig())

	verdict, err := broker.Authorize(context.Background(), ports.AuthorizationRequest{
		UserID:     "u1",
		Command:    "git reset --hard HEAD~1",
		WorkingDir: t.TempDir(),
		Notify:     resolveOnNotify(store, ports.DecisionAllowOnce, ""),
	})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed, "the human already approved; a failed backup only gets noted")
	assert.Contains(t, verdict.Reason, "backup failed")
}
