package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	model "github.com/okian/podium/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "podium:snapshot:"

// RedisArchive stores one JSON snapshot per tournament under prefix+id.
type RedisArchive struct {
	client *redis.Client
	prefix string
}

// NewRedisArchive wraps client. An empty prefix uses "podium:snapshot:".
func NewRedisArchive(client *redis.Client, prefix string) *RedisArchive {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisArchive{client: client, prefix: prefix}
}

// DialRedisArchive connects to addr and verifies the connection.
func DialRedisArchive(ctx context.Context, addr string, db int, prefix string) (*RedisArchive, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis archive %s: %w", addr, err)
	}
	return NewRedisArchive(client, prefix), nil
}

func (a *RedisArchive) Name() string { return "redis" }

func (a *RedisArchive) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return a.client.Set(ctx, a.prefix+snap.TournamentID, data, 0).Err()
}

func (a *RedisArchive) Delete(ctx context.Context, tournamentID string) error {
	return a.client.Del(ctx, a.prefix+tournamentID).Err()
}

func (a *RedisArchive) LoadAll(ctx context.Context) ([]*model.Snapshot, error) {
	var out []*model.Snapshot
	iter := a.client.Scan(ctx, 0, a.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := a.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var snap model.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, &snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", a.prefix, err)
	}
	return out, nil
}

func (a *RedisArchive) Close() error {
	return a.client.Close()
}
