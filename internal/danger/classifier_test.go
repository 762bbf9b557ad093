package danger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixpoint/internal/agent/ports"
)

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		command string
		matched string
		risk    ports.RiskLevel
	}{
		{"rm -rf /", "rm -rf /", ports.RiskCritical},
		{"rm -rf build", "rm -rf", ports.RiskHigh},
		{"rm -r tmp", "rm -r", ports.RiskHigh},
		{"rm notes.txt", "rm", ports.RiskMedium},
		{"git push --force origin main", "git push --force", ports.RiskCritical},
		{"git push -f origin main", "git push -f", ports.RiskCritical},
		{"git reset --hard HEAD~3", "git reset --hard", ports.RiskHigh},
		{"chmod -R 777 .", "chmod -R", ports.RiskMedium},
		{"kill -9 4321", "kill -9", ports.RiskMedium},
		{"truncate -s 0 app.log", "truncate", ports.RiskMedium},
		{"docker volume rm data", "docker volume rm", ports.RiskHigh},
		{"psql -c 'drop table users'", "drop table", ports.RiskCritical},
	}

	for _, tt := range tests {
		c := Classify(tt.command)
		require.True(t, c.Dangerous, "command: %s", tt.command)
		assert.Equal(t, tt.matched, c.Matched, "command: %s", tt.command)
		assert.Equal(t, tt.risk, c.Risk, "command: %s", tt.command)
	}
}

func TestClassifyPrefixNeedsTokenBoundary(t *testing.T) {
	c := Classify("rm -rfoo")
	assert.NotEqual(t, "rm -rf", c.Matched)
}

func TestClassifySafeCommands(t *testing.T) {
	for _, command := range []string{
		"ls -la",
		"go test ./...",
		"git status",
		"git push origin main",
		"echo hello",
	} {
		c := Classify(command)
		assert.False(t, c.Dangerous, "command: %s", command)
		assert.Equal(t, ports.RiskLow, c.Risk)
		assert.Nil(t, c.Spec)
	}
}

func TestClassifyCompoundTakesWorstSegment(t *testing.T) {
	c := Classify("ls build && rm -rf build")
	require.True(t, c.Dangerous)
	assert.Equal(t, "rm -rf", c.Matched)
	assert.Equal(t, ports.RiskHigh, c.Risk)

	c = Classify("rm old.log; git push --force origin main")
	assert.Equal(t, ports.RiskCritical, c.Risk)
	assert.Equal(t, "git_history_rewrite", c.Spec.Type)
}

func TestClassifyStripsSudoAndWhitespace(t *testing.T) {
	c := Classify("  sudo   RM   -rf   /var/data  ")
	require.True(t, c.Dangerous)
	assert.Equal(t, "rm -rf", c.Matched)
}

func TestClassifyDeterministic(t *testing.T) {
	first := Classify("git reset --hard && rm -rf node_modules")
	second := Classify("git reset --hard && rm -rf node_modules")
	assert.Equal(t, first.Matched, second.Matched)
	assert.Equal(t, first.Risk, second.Risk)
}

func TestClassificationCarriesSpec(t *testing.T) {
	c := Classify("git push --force origin main")
	require.NotNil(t, c.Spec)
	assert.Equal(t, ports.BackupGitBranch, c.Spec.Backup)
	assert.True(t, c.Spec.Rollback)
	assert.NotEmpty(t, c.Spec.Warning)
	assert.NotEmpty(t, c.Spec.Alternatives)
}

func TestTargetOf(t *testing.T) {
	assert.Equal(t, "build", TargetOf("rm -rf build"))
	assert.Equal(t, "/var/log/app", TargetOf("sudo rm -rf /var/log/app"))
	assert.Equal(t, "data.txt", TargetOf("rm -f data.txt"))
	assert.Equal(t, "", TargetOf("rm"))
	assert.Equal(t, "", TargetOf(""))
}

func TestSpecsReturnsCopy(t *testing.T) {
	got := Specs()
	require.NotEmpty(t, got)
	got[0].Pattern = "mutated"
	assert.NotEqual(t, "mutated", Specs()[0].Pattern)
}
