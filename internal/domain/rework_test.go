package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reworkNow = time.Date(2026, 3, 20, 11, 0, 0, 0, time.UTC)

func newTestRework(t *testing.T, elevated bool) *Rework {
	t.Helper()
	r, err := NewRework("rw-1", "order-1", "line-1", "step-1", "cracked weld", "emp-1", elevated, reworkNow)
	require.NoError(t, err)
	return r
}

func TestNewRework(t *testing.T) {
	t.Run("opens in requested state", func(t *testing.T) {
		r := newTestRework(t, false)
		assert.Equal(t, ReworkRequested, r.State)
		assert.Equal(t, "cracked weld", r.Reason)
		assert.Equal(t, "emp-1", r.RequestedBy)
	})

	t.Run("blank reason is rejected", func(t *testing.T) {
		_, err := NewRework("rw-1", "order-1", "line-1", "step-1", "  ", "emp-1", false, reworkNow)
		assert.ErrorIs(t, err, ErrReworkNeedsReason)
	})
}

func TestReworkHappyPath(t *testing.T) {
	r := newTestRework(t, false)

	require.NoError(t, r.Approve("sup-1", "", reworkNow))
	assert.Equal(t, ReworkApproved, r.State)
	assert.Equal(t, "sup-1", r.ApprovedBy)

	require.NoError(t, r.Start("emp-2", reworkNow))
	assert.Equal(t, ReworkInProgress, r.State)

	require.NoError(t, r.SubmitVerification("emp-2", "reweld inspected", reworkNow))
	assert.Equal(t, ReworkVerificationPending, r.State)
	assert.Equal(t, "reweld inspected", r.OutcomeNote)

	require.NoError(t, r.Close("sup-1", reworkNow))
	assert.Equal(t, ReworkClosed, r.State)
	assert.True(t, r.State.IsTerminal())
}

func TestReworkTransitionTable(t *testing.T) {
	advanceTo := func(t *testing.T, target ReworkState) *Rework {
		t.Helper()
		r := newTestRework(t, false)
		steps := []func() error{
			func() error { return r.Approve("sup-1", "", reworkNow) },
			func() error { return r.Start("emp-2", reworkNow) },
			func() error { return r.SubmitVerification("emp-2", "", reworkNow) },
			func() error { return r.Close("sup-1", reworkNow) },
		}
		for _, step := range steps {
			if r.State == target {
				return r
			}
			require.NoError(t, step())
		}
		require.Equal(t, target, r.State)
		return r
	}

	t.Run("skipping states is rejected", func(t *testing.T) {
		r := newTestRework(t, false)
		assert.ErrorIs(t, r.Start("emp-2", reworkNow), ErrReworkInvalidTransition)
		assert.ErrorIs(t, r.Close("sup-1", reworkNow), ErrReworkInvalidTransition)
	})

	t.Run("cancel is reachable from every non-terminal state", func(t *testing.T) {
		for _, state := range []ReworkState{ReworkRequested, ReworkApproved, ReworkInProgress, ReworkVerificationPending} {
			r := advanceTo(t, state)
			assert.NoError(t, r.Cancel("sup-1", "not needed", reworkNow), "from %s", state)
			assert.Equal(t, ReworkCancelled, r.State)
		}
	})

	t.Run("scrap is reachable from every non-terminal state", func(t *testing.T) {
		for _, state := range []ReworkState{ReworkRequested, ReworkApproved, ReworkInProgress, ReworkVerificationPending} {
			r := advanceTo(t, state)
			assert.NoError(t, r.Scrap("sup-1", "unrecoverable", reworkNow), "from %s", state)
			assert.Equal(t, ReworkScrapped, r.State)
		}
	})

	t.Run("terminal states accept nothing", func(t *testing.T) {
		r := advanceTo(t, ReworkVerificationPending)
		require.NoError(t, r.Close("sup-1", reworkNow))

		assert.ErrorIs(t, r.Approve("sup-1", "", reworkNow), ErrReworkInvalidTransition)
		assert.ErrorIs(t, r.Cancel("sup-1", "late", reworkNow), ErrReworkInvalidTransition)
		assert.ErrorIs(t, r.Scrap("sup-1", "late", reworkNow), ErrReworkInvalidTransition)
	})
}

func TestElevatedApproval(t *testing.T) {
	r := newTestRework(t, true)

	assert.ErrorIs(t, r.Approve("sup-1", "  ", reworkNow), ErrElevatedNeedsReason)
	assert.Equal(t, ReworkRequested, r.State)

	require.NoError(t, r.Approve("sup-1", "customer escalation", reworkNow))
	assert.Equal(t, ReworkApproved, r.State)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, ReworkClosed.IsTerminal())
	assert.True(t, ReworkCancelled.IsTerminal())
	assert.True(t, ReworkScrapped.IsTerminal())
	assert.False(t, ReworkRequested.IsTerminal())
	assert.False(t, ReworkVerificationPending.IsTerminal())
}
