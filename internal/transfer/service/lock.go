package service

import (
	"context"
	"sync"
	"time"

	dErrors "remitflow/pkg/domain-errors"
)

// numSessionShards spreads session locks over a fixed set of mutexes so two
// requests for the same session serialize without a global lock.
const numSessionShards = 128

const defaultLockTimeout = 30 * time.Second

type sessionLocks struct {
	shards  [numSessionShards]sync.Mutex
	timeout time.Duration
}

// run executes fn while holding the shard lock for sessionID.
func (l *sessionLocks) run(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "session operation aborted: context cancelled")
	}

	timeout := l.timeout
	if timeout == 0 {
		timeout = defaultLockTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := &l.shards[hashSessionID(sessionID)%numSessionShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "session operation aborted: context cancelled")
	}
	return fn(ctx)
}

// hashSessionID is FNV-1a.
func hashSessionID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
