package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitflow/internal/payment"
)

type fakeConsumer struct {
	mu       sync.Mutex
	consumed map[string]payment.Outcome
	err      error
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{consumed: make(map[string]payment.Outcome)}
}

func (f *fakeConsumer) Consume(_ context.Context, intentID string, outcome payment.Outcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.consumed[intentID]; ok {
		return false, nil
	}
	f.consumed[intentID] = outcome
	return true, nil
}

func success(ref string) func(context.Context) payment.Outcome {
	return func(context.Context) payment.Outcome {
		return payment.Succeeded(ref, decimal.RequireFromString("10.00"), "USD")
	}
}

func TestResolve_FirstSignalWins(t *testing.T) {
	consumer := newFakeConsumer()
	ch := New(NewMemoryLedger(time.Hour), consumer, nil, nil)
	ctx := context.Background()

	d, err := ch.Resolve(ctx, "intent-1", ModeInContext, func(context.Context) payment.Outcome { return payment.Cancelled() })
	require.NoError(t, err)
	assert.False(t, d.Duplicate)
	assert.Equal(t, payment.OutcomeCancelled, d.Outcome.Kind)

	var resolved atomic.Int32
	d, err = ch.Resolve(ctx, "intent-1", ModeReturnRoute, func(context.Context) payment.Outcome {
		resolved.Add(1)
		return payment.Succeeded("late", decimal.Zero, "USD")
	})
	require.NoError(t, err)
	assert.True(t, d.Duplicate)
	assert.Zero(t, resolved.Load(), "duplicates never recompute the outcome")
	assert.Equal(t, payment.OutcomeCancelled, consumer.consumed["intent-1"].Kind)
}

func TestResolve_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	consumer := newFakeConsumer()
	ch := New(NewMemoryLedger(time.Hour), consumer, nil, nil)

	var captures atomic.Int32
	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := ch.Resolve(context.Background(), "intent-2", ModeInContext, func(ctx context.Context) payment.Outcome {
				captures.Add(1)
				return success("REF-2")(ctx)
			})
			assert.NoError(t, err)
			if !d.Duplicate {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), captures.Load())
	assert.Equal(t, int32(1), applied.Load())
}

func TestResolve_ConsumerFailureReplaysParkedOutcome(t *testing.T) {
	consumer := newFakeConsumer()
	consumer.err = errors.New("store unavailable")
	ch := New(NewMemoryLedger(time.Hour), consumer, nil, nil)
	ctx := context.Background()

	var captures atomic.Int32
	capture := func(ref string) func(context.Context) payment.Outcome {
		return func(ctx context.Context) payment.Outcome {
			captures.Add(1)
			return success(ref)(ctx)
		}
	}

	_, err := ch.Resolve(ctx, "intent-3", ModeInContext, capture("REF-3"))
	require.Error(t, err)

	consumer.err = nil
	d, err := ch.Resolve(ctx, "intent-3", ModeInContext, capture("REF-OTHER"))
	require.NoError(t, err)
	assert.False(t, d.Duplicate)
	assert.Equal(t, "REF-3", d.Outcome.Reference, "the parked outcome is applied, not a new one")
	assert.Equal(t, "REF-3", consumer.consumed["intent-3"].Reference)
	assert.Equal(t, int32(1), captures.Load())

	d, err = ch.Resolve(ctx, "intent-3", ModeInContext, capture("REF-OTHER"))
	require.NoError(t, err)
	assert.True(t, d.Duplicate)
	assert.Equal(t, int32(1), captures.Load())
}

func TestResolve_StaleIntentIsDuplicate(t *testing.T) {
	consumer := newFakeConsumer()
	consumer.consumed["intent-4"] = payment.Cancelled()
	ch := New(NewMemoryLedger(time.Hour), consumer, nil, nil)

	d, err := ch.Resolve(context.Background(), "intent-4", ModeReturnRoute, success("REF-4"))
	require.NoError(t, err)
	assert.True(t, d.Duplicate)
}

func TestAwait(t *testing.T) {
	ch := New(NewMemoryLedger(time.Hour), newFakeConsumer(), nil, nil)

	t.Run("receives the delivered outcome", func(t *testing.T) {
		got := make(chan payment.Outcome, 1)
		ready := make(chan struct{})
		go func() {
			sub, cancel := ch.Subscribe("intent-5")
			defer cancel()
			close(ready)
			got <- <-sub
		}()
		<-ready

		_, err := ch.Resolve(context.Background(), "intent-5", ModeInContext, success("REF-5"))
		require.NoError(t, err)

		select {
		case out := <-got:
			assert.Equal(t, "REF-5", out.Reference)
		case <-time.After(time.Second):
			t.Fatal("waiter was not woken")
		}
	})

	t.Run("waiters are scoped to their intent", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		go func() {
			_, _ = ch.Resolve(context.Background(), "intent-other", ModeInContext, success("REF-X"))
		}()
		_, err := ch.Await(ctx, "intent-6")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestResolveReturn(t *testing.T) {
	cases := []struct {
		name  string
		entry ReturnEntry
		kind  payment.OutcomeKind
		code  payment.ErrorCode
	}{
		{"success with reference", ReturnEntry{Variant: VariantSuccess, Reference: "PAY-1"}, payment.OutcomeSuccess, ""},
		{"success without reference", ReturnEntry{Variant: VariantSuccess}, payment.OutcomeCancelled, payment.CodeUserCancelled},
		{"cancel", ReturnEntry{Variant: VariantCancel, Reference: "PAY-1"}, payment.OutcomeCancelled, payment.CodeUserCancelled},
		{"unknown variant", ReturnEntry{Variant: "approve"}, payment.OutcomeError, payment.CodeUnexpectedReturn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := ResolveReturn(tc.entry)
			assert.Equal(t, tc.kind, out.Kind)
			assert.Equal(t, tc.code, out.Code)
		})
	}
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim wins until it expires", func(t *testing.T) {
		l := NewMemoryLedger(time.Minute)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		c, err := l.Claim(ctx, "a")
		require.NoError(t, err)
		assert.True(t, c.Won)
		assert.Nil(t, c.Pending)

		c, _ = l.Claim(ctx, "a")
		assert.False(t, c.Won)

		now = now.Add(2 * time.Minute)
		c, _ = l.Claim(ctx, "a")
		assert.True(t, c.Won, "expired claims can be taken again")
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		l := NewMemoryLedger(0)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		c, err := l.Claim(ctx, "b")
		require.NoError(t, err)
		assert.True(t, c.Won)

		now = now.Add(24 * time.Hour)
		c, _ = l.Claim(ctx, "b")
		assert.False(t, c.Won)
	})

	t.Run("parked outcome goes to exactly one claimant", func(t *testing.T) {
		l := NewMemoryLedger(time.Minute)
		c, _ := l.Claim(ctx, "c")
		require.True(t, c.Won)

		require.NoError(t, l.Park(ctx, "c", payment.Cancelled()))

		c, err := l.Claim(ctx, "c")
		require.NoError(t, err)
		assert.True(t, c.Won)
		require.NotNil(t, c.Pending)
		assert.Equal(t, payment.OutcomeCancelled, c.Pending.Kind)

		c, _ = l.Claim(ctx, "c")
		assert.False(t, c.Won)
	})
}

func TestResolve_ZeroTTLLedgerAppliesOnce(t *testing.T) {
	consumer := newFakeConsumer()
	ch := New(NewMemoryLedger(0), consumer, nil, nil)

	var captures atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ch.Resolve(context.Background(), "intent-7", ModeInContext, func(ctx context.Context) payment.Outcome {
				captures.Add(1)
				return success("REF-7")(ctx)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), captures.Load())
}
