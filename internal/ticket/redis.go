package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the ticket store with Redis. Buckets are lists, so
// LPOP gives the atomic pop the matchmaking contract requires; a
// per-owner pending key remembers the exact queued payload so a
// superseding request can LREM it.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to the given redis URL and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, "kv:"+key, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string, out any) error {
	data, err := s.rdb.Get(ctx, "kv:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, "kv:"+key).Err()
}

func (s *RedisStore) Push(ctx context.Context, bucket string, e Entry, ttl time.Duration) error {
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, "q:"+bucket, data).Err(); err != nil {
		return err
	}
	if e.Owner != "" {
		// Remember the queued payload so RemoveOwner can LREM it.
		if err := s.rdb.Set(ctx, ownerKey(bucket, e.Owner), data, ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisStore) Pop(ctx context.Context, bucket, skipOwner string) (*Entry, error) {
	for {
		data, err := s.rdb.LPop(ctx, "q:"+bucket).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			// Unreadable entry, drop it and keep going.
			continue
		}
		if e.Owner != "" {
			s.rdb.Del(ctx, ownerKey(bucket, e.Owner))
		}
		if !e.ExpiresAt.IsZero() && !time.Now().Before(e.ExpiresAt) {
			continue
		}
		if skipOwner != "" && e.Owner == skipOwner {
			continue
		}
		return &e, nil
	}
}

func (s *RedisStore) RemoveOwner(ctx context.Context, bucket, owner string) error {
	if owner == "" {
		return nil
	}
	data, err := s.rdb.GetDel(ctx, ownerKey(bucket, owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.rdb.LRem(ctx, "q:"+bucket, 0, data).Err()
}

func ownerKey(bucket, owner string) string {
	return "qo:" + bucket + ":" + owner
}
