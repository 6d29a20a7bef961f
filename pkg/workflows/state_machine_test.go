package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestMachine() *StateMachine {
	return NewStateMachine(
		Transition{Action: "SUBMIT", From: []string{"DRAFT", "CORRECTION"}, To: "REVIEW"},
		Transition{Action: "APPROVE", From: []string{"REVIEW"}, To: "APPROVED"},
		Transition{Action: "REJECT", From: []string{"REVIEW"}, To: "CORRECTION"},
		Transition{Action: "SIGN", From: []string{"APPROVED"}, To: "PUBLISHED"},
	)
}

func TestTarget(t *testing.T) {
	sm := newTestMachine()

	to, ok := sm.Target("SUBMIT", "CORRECTION")
	assert.True(t, ok)
	assert.Equal(t, "REVIEW", to)

	_, ok = sm.Target("SIGN", "REVIEW")
	assert.False(t, ok)

	_, ok = sm.Target("ARCHIVE", "PUBLISHED")
	assert.False(t, ok)
}

func TestAllowedActions(t *testing.T) {
	sm := newTestMachine()

	assert.Equal(t, []string{"APPROVE", "REJECT"}, sm.AllowedActions("REVIEW"))
	assert.Equal(t, []string{"SUBMIT"}, sm.AllowedActions("CORRECTION"))
	assert.Empty(t, sm.AllowedActions("PUBLISHED"))
}
