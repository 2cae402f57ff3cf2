package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type step struct {
	fail   bool
	opened bool
	closed bool
	state  State
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure only",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true, state: StateClosed},
				{fail: true, state: StateClosed},
				{fail: true, opened: true, state: StateOpen},
				{fail: true, state: StateOpen},
			},
		},
		{
			name: "success clears the failure streak",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true, state: StateClosed},
				{fail: false, state: StateClosed},
				{fail: true, state: StateClosed},
				{fail: true, opened: true, state: StateOpen},
			},
		},
		{
			name: "closes after consecutive trial successes",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, opened: true, state: StateOpen},
				{fail: false, state: StateOpen},
				{fail: false, closed: true, state: StateClosed},
			},
		},
		{
			name: "failed trial restarts the success streak",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, opened: true, state: StateOpen},
				{fail: false, state: StateOpen},
				{fail: true, state: StateOpen},
				{fail: false, state: StateOpen},
				{fail: false, closed: true, state: StateClosed},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("notification", tt.opts...)
			for i, s := range tt.steps {
				var change StateChange
				if s.fail {
					change = b.RecordFailure()
				} else {
					change = b.RecordSuccess()
				}
				assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
				assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
				assert.Equal(t, s.state, b.State(), "step %d state", i)
			}
		})
	}
}

func TestBreakerAllowWaitsForCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New("notification",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(59 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "trial call allowed once the cooldown elapses")
	assert.Equal(t, "open", b.State().String())

	// a failed trial call pushes the next one out by a full cooldown
	b.RecordFailure()
	assert.False(t, b.Allow())
}
