// Package session stores refresh tokens in Redis. Tokens are stored by hash,
// never by value, and expire with their TTL so revocation lists stay small.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"draftdesk/api/internal/store"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rt:"

// record is what one refresh token maps to. Only the user id matters for
// auth; issuedAt is kept for operational inspection.
type record struct {
	UserID   string    `json:"uid"`
	IssuedAt time.Time `json:"iat"`
}

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client, which the process may
// share with other Redis-backed subsystems.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh session already expired")
	}
	payload, err := json.Marshal(record{UserID: userID, IssuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal refresh record: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+tokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession resolves a token hash to its user. An expired or
// revoked token is indistinguishable from one never issued.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	raw, err := s.client.Get(ctx, keyPrefix+tokenHash).Bytes()
	if err == redis.Nil {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return store.User{}, fmt.Errorf("decode refresh record: %w", err)
	}
	return store.User{ID: rec.UserID}, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
