package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func longRunningContext() *TaskContext {
	tc := NewTaskContext("t1", "big migration", "/ws", ComplexityEnterprise, time.Now())
	tc.LongRunning = true
	return tc
}

func TestDetectHumanGateInactiveOutsideLongRunning(t *testing.T) {
	tc := NewTaskContext("t1", "r", "/ws", ComplexityComplex, time.Now())
	gate := DetectHumanGate(tc, "I will drop table users now", nil)
	assert.False(t, gate.Triggered)
}

func TestDetectHumanGateTriggersOnPhrases(t *testing.T) {
	tc := longRunningContext()

	gate := DetectHumanGate(tc, "Next step: run the database migration.", nil)
	assert.True(t, gate.Triggered)
	assert.True(t, gate.Blocking)

	gate = DetectHumanGate(tc, "", []string{"git push --force origin main"})
	assert.True(t, gate.Triggered)
	assert.Contains(t, gate.Reason, "history rewrite")
}

func TestDetectHumanGateBlastRadius(t *testing.T) {
	tc := longRunningContext()
	for i := 0; i < blastRadiusThreshold; i++ {
		tc.RecordFileModified(fmt.Sprintf("file%d.go", i))
	}

	gate := DetectHumanGate(tc, "continuing", nil)
	assert.True(t, gate.Triggered)
	assert.False(t, gate.Blocking, "a large change set pauses for sign-off, it does not terminate")
	assert.Contains(t, gate.Reason, "blast radius")
}

func TestDetectHumanGateBlastRadiusFiresOnce(t *testing.T) {
	tc := longRunningContext()
	for i := 0; i < blastRadiusThreshold; i++ {
		tc.RecordFileModified(fmt.Sprintf("file%d.go", i))
	}
	tc.BlastRadiusGated = true

	gate := DetectHumanGate(tc, "continuing", nil)
	assert.False(t, gate.Triggered, "an already-surfaced blast radius does not re-trigger")
}

func TestDetectHumanGateQuietByDefault(t *testing.T) {
	tc := longRunningContext()
	gate := DetectHumanGate(tc, "edited one file, running checks", []string{"go test ./..."})
	assert.False(t, gate.Triggered)
}
