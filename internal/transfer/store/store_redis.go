package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"remitflow/internal/transfer/wizard"
	"remitflow/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "transfer:session:"
	intentKeyPrefix  = "transfer:intent:"
)

// RedisStore shares wizard snapshots across instances. Saves run inside
// WATCH/MULTI so a concurrent writer turns into sentinel.ErrConflict.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }
func intentKey(id string) string  { return intentKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, state *wizard.State) error {
	next := state.Clone()
	next.Version = 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(state.SessionID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	state.Version = 1
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*wizard.State, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var state wizard.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *wizard.State) error {
	key := sessionKey(state.SessionID)
	next := state.Clone()
	next.Version = state.Version + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}
		var current struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if current.Version != state.Version {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			if next.Intent != nil {
				pipe.Set(ctx, intentKey(next.Intent.ID), next.SessionID, s.ttl)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return sentinel.ErrConflict
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrNotFound):
		return err
	case err != nil:
		return fmt.Errorf("save session: %w", err)
	}
	state.Version = next.Version
	return nil
}

func (s *RedisStore) FindSessionByIntent(ctx context.Context, intentID string) (string, error) {
	sessionID, err := s.client.Get(ctx, intentKey(intentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find session by intent: %w", err)
	}
	return sessionID, nil
}
