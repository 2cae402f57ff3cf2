package channel

import (
	"context"
	"sync"
	"time"

	"remitflow/internal/payment"
)

// Claim is the result of taking an intent's signal. Pending carries an
// outcome a previous owner resolved but could not apply; the new owner must
// replay it instead of resolving again.
type Claim struct {
	Won     bool
	Pending *payment.Outcome
}

// Ledger records which intents already had a terminal signal claimed.
// Claim is the at-most-once gate: only the first claim for an intent wins,
// unless the owner parked its outcome again.
type Ledger interface {
	Claim(ctx context.Context, intentID string) (Claim, error)
	// Park hands a claim back together with the outcome its owner resolved
	// but could not apply, so the next signal replays that outcome.
	Park(ctx context.Context, intentID string, outcome payment.Outcome) error
}

type ledgerEntry struct {
	expires time.Time
	pending *payment.Outcome
}

// MemoryLedger is a process-local ledger for tests and single-instance dev.
// A non-positive ttl keeps claims forever.
type MemoryLedger struct {
	mu     sync.Mutex
	claims map[string]ledgerEntry
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		claims: make(map[string]ledgerEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// expiry returns the zero time when claims never expire.
func (l *MemoryLedger) expiry(now time.Time) time.Time {
	if l.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(l.ttl)
}

func (e ledgerEntry) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

func (l *MemoryLedger) Claim(_ context.Context, intentID string) (Claim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	entry, ok := l.claims[intentID]
	if ok && entry.live(now) {
		if entry.pending == nil {
			return Claim{}, nil
		}
		pending := entry.pending
		entry.pending = nil
		l.claims[intentID] = entry
		return Claim{Won: true, Pending: pending}, nil
	}
	l.claims[intentID] = ledgerEntry{expires: l.expiry(now)}
	return Claim{Won: true}, nil
}

func (l *MemoryLedger) Park(_ context.Context, intentID string, outcome payment.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.claims[intentID]
	if !ok {
		entry.expires = l.expiry(l.now())
	}
	entry.pending = &outcome
	l.claims[intentID] = entry
	return nil
}
