package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"nebula/internal/store"
)

// Redis persists message store snapshots under a per-session key. It is
// the optional persistence collaborator the stores opt into; losing it
// never affects correctness, only warm-start state.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ store.Persister = (*Redis)(nil)

func NewRedis(addr, password, sessionKey string, ttl time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
	} else {
		slog.Info("Connected to Redis")
	}

	return &Redis{
		client: client,
		key:    "nebula:session:" + sessionKey + ":messages",
		ttl:    ttl,
	}
}

func (r *Redis) Save(snap store.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(context.Background(), r.key, data, r.ttl).Err()
}

func (r *Redis) Load() (store.Snapshot, bool, error) {
	data, err := r.client.Get(context.Background(), r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return store.Snapshot{}, false, nil
		}
		return store.Snapshot{}, false, err
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return store.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
