package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "session:"

// RedisSnapshotter keeps session snapshots in Redis with a TTL equal to the
// idle timeout.
type RedisSnapshotter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotter(client *redis.Client, ttl time.Duration) *RedisSnapshotter {
	return &RedisSnapshotter{client: client, ttl: ttl}
}

func snapshotKey(id string) string {
	return snapshotKeyPrefix + id
}

func (r *RedisSnapshotter) Save(ctx context.Context, snap Snapshot) error {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}
	if err := r.client.Set(ctx, snapshotKey(snap.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	return nil
}

func (r *RedisSnapshotter) Load(ctx context.Context, id string) (Snapshot, bool, error) {
	data, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load session %s: %w", id, err)
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return snap, true, nil
}

func (r *RedisSnapshotter) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, snapshotKey(id)).Err()
}
