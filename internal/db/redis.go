package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/redis/go-redis/v9"

	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/secure"
)

// RedisDataManager stores encrypted snapshots and settings in Redis.
type RedisDataManager struct {
	client  *redis.Client
	ttl     time.Duration
	crypter *secure.Crypter
}

// NewRedisDataManager creates a new RedisDataManager with connection pooling.
func NewRedisDataManager(connStr string, encryptionKey string) (*RedisDataManager, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Send()
	rdb := redis.NewClient(opt)

	crypter, err := secure.NewCrypter(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create crypter: %w", err)
	}

	return &RedisDataManager{
		client:  rdb,
		ttl:     time.Hour * 6,
		crypter: crypter,
	}, nil
}

func (r *RedisDataManager) keySnapshot(id string) string {
	return fmt.Sprintf("snapshot:%s", id)
}

func (r *RedisDataManager) keySettings(id string) string {
	return fmt.Sprintf("settings:%s", id)
}

// SaveSnapshot stores the snapshot, it expires after the session TTL
func (r *RedisDataManager) SaveSnapshot(ctx context.Context, id string, snap *domain.Snapshot) error {
	goapp.Log.Trace().Str("id", id).Int("lines", len(snap.Lines)).Msg("Save snapshot")
	data, err := r.crypter.SealJSON(snap)
	if err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}
	return r.client.Set(ctx, r.keySnapshot(id), data, r.ttl).Err()
}

// GetSnapshot retrieves the snapshot
func (r *RedisDataManager) GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	bs, err := r.client.Get(ctx, r.keySnapshot(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var res domain.Snapshot
	if err := r.crypter.OpenJSON(bs, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SaveSettings stores settings without expiry
func (r *RedisDataManager) SaveSettings(ctx context.Context, s *domain.Settings) error {
	data, err := r.crypter.SealJSON(s)
	if err != nil {
		return fmt.Errorf("seal settings: %w", err)
	}
	return r.client.Set(ctx, r.keySettings(s.ID), data, 0).Err()
}

// GetSettings retrieves settings
func (r *RedisDataManager) GetSettings(ctx context.Context, id string) (*domain.Settings, error) {
	bs, err := r.client.Get(ctx, r.keySettings(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	var res domain.Settings
	if err := r.crypter.OpenJSON(bs, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *RedisDataManager) Close() error {
	return r.client.Close()
}
