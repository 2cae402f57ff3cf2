package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"remitflow/internal/payment"
)

const claimKeyPrefix = "payment:outcome:claim:"

// claimRecord is the value stored under a claim key.
type claimRecord struct {
	ClaimedAt time.Time        `json:"claimed_at"`
	Pending   *payment.Outcome `json:"pending,omitempty"`
}

// RedisLedger shares claims across instances. A fresh claim is SET NX; taking
// over a parked outcome runs under WATCH so only one instance replays it.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func claimKey(intentID string) string { return claimKeyPrefix + intentID }

func (l *RedisLedger) Claim(ctx context.Context, intentID string) (Claim, error) {
	key := claimKey(intentID)
	held, err := json.Marshal(claimRecord{ClaimedAt: time.Now().UTC()})
	if err != nil {
		return Claim{}, fmt.Errorf("marshal outcome claim: %w", err)
	}
	ok, err := l.client.SetNX(ctx, key, held, l.ttl).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("claim outcome for intent %s: %w", intentID, err)
	}
	if ok {
		return Claim{Won: true}, nil
	}

	var claim Claim
	err = l.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var rec claimRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode outcome claim: %w", err)
		}
		if rec.Pending == nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, held, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		claim = Claim{Won: true, Pending: rec.Pending}
		return nil
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return Claim{}, nil
	case err != nil:
		return Claim{}, fmt.Errorf("claim outcome for intent %s: %w", intentID, err)
	}
	return claim, nil
}

func (l *RedisLedger) Park(ctx context.Context, intentID string, outcome payment.Outcome) error {
	payload, err := json.Marshal(claimRecord{ClaimedAt: time.Now().UTC(), Pending: &outcome})
	if err != nil {
		return fmt.Errorf("marshal parked outcome: %w", err)
	}
	// XX: an expired claim stays expired.
	err = l.client.SetArgs(ctx, claimKey(intentID), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("park outcome for intent %s: %w", intentID, err)
	}
	return nil
}
