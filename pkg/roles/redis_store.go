package roles

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares detection snapshots between sibling processes through
// Redis. Writes use an optimistic transaction so a stale refresh completing
// late never overwrites a newer generation.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed snapshot store. A non-positive TTL
// stores snapshots without expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "authz:detection:",
		ttl:       ttl,
	}
}

func (s *RedisStore) key(subjectID string) string {
	return s.keyPrefix + subjectID
}

// Get returns the cached snapshot for a subject.
func (s *RedisStore) Get(ctx context.Context, subjectID string) (Detection, error) {
	raw, err := s.client.Get(ctx, s.key(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Detection{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Detection{}, err
	}

	var detection Detection
	if err := json.Unmarshal(raw, &detection); err != nil {
		return Detection{}, errors.Join(ErrSnapshotNotFound, err)
	}
	return detection, nil
}

// Put stores the snapshot unless a higher generation is already present.
func (s *RedisStore) Put(ctx context.Context, detection Detection) error {
	key := s.key(detection.SubjectID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var existing Detection
			if jsonErr := json.Unmarshal(raw, &existing); jsonErr == nil &&
				existing.Generation > detection.Generation {
				return nil
			}
		}

		payload, err := json.Marshal(detection)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}, key)
}

// Delete removes the snapshot for a subject.
func (s *RedisStore) Delete(ctx context.Context, subjectID string) error {
	return s.client.Del(ctx, s.key(subjectID)).Err()
}
