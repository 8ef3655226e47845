package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

const (
	keyLocation     = "location"
	keyPreferences  = "preferences"
	keyLastNotified = "last_notification_ms"
	keyCard         = "widget_card"
)

// RedisStore keeps settings and the widget card in Redis so that several
// processes (API, background jobs, widget readers) share one record.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings. prefix namespaces every key.
func NewRedisStore(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: rdb, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) LoadLocation(ctx context.Context) (kp.Location, error) {
	var loc kp.Location
	if err := s.getJSON(ctx, keyLocation, &loc); err != nil {
		return kp.Location{}, err
	}
	return loc, nil
}

func (s *RedisStore) SaveLocation(ctx context.Context, loc kp.Location) error {
	return s.setJSON(ctx, keyLocation, loc)
}

func (s *RedisStore) LoadPreferences(ctx context.Context) (kp.Preferences, error) {
	var prefs kp.Preferences
	if err := s.getJSON(ctx, keyPreferences, &prefs); err != nil {
		return kp.Preferences{}, err
	}
	return prefs, nil
}

func (s *RedisStore) SavePreferences(ctx context.Context, prefs kp.Preferences) error {
	return s.setJSON(ctx, keyPreferences, prefs)
}

func (s *RedisStore) LastNotification(ctx context.Context) (time.Time, error) {
	val, err := s.client.Get(ctx, s.key(keyLastNotified)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", keyLastNotified, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (s *RedisStore) SetLastNotification(ctx context.Context, at time.Time) error {
	return s.client.Set(ctx, s.key(keyLastNotified), strconv.FormatInt(at.UnixMilli(), 10), 0).Err()
}

// SaveCard merges fields into the card hash.
func (s *RedisStore) SaveCard(ctx context.Context, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	return s.client.HSet(ctx, s.key(keyCard), values...).Err()
}

func (s *RedisStore) LoadCard(ctx context.Context) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, s.key(keyCard)).Result()
	if err != nil {
		return nil, err
	}
	// HGETALL on a missing key is an empty map, not redis.Nil.
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) getJSON(ctx context.Context, name string, v interface{}) error {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(name), data, 0).Err()
}
