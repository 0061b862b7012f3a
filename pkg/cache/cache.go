package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss returned when a key does not exist
var ErrCacheMiss = errors.New("cache miss")

// TTLUnreadTotal bounds staleness of cached unread totals, which feed
// the client poller.
const TTLUnreadTotal = 30 * time.Second

// PrefixUnreadTotal namespaces per-user unread totals in Redis
const PrefixUnreadTotal = "messaging:unread:"

// Service Redis-backed cache for the messaging core
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// Unread total per user
	GetUnreadTotal(ctx context.Context, userID string) (int64, error)
	SetUnreadTotal(ctx context.Context, userID string, total int64) error
	InvalidateUnreadTotal(ctx context.Context, userIDs ...string) error
}

type service struct {
	client *redis.Client
}

// NewService creates a cache service. A nil client yields a no-op cache
// so the API can run without Redis in development.
func NewService(client *redis.Client) Service {
	return &service{client: client}
}

func (s *service) Get(ctx context.Context, key string, dest interface{}) error {
	if s.client == nil {
		return ErrCacheMiss
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *service) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *service) GetUnreadTotal(ctx context.Context, userID string) (int64, error) {
	var total int64
	if err := s.Get(ctx, PrefixUnreadTotal+userID, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *service) SetUnreadTotal(ctx context.Context, userID string, total int64) error {
	return s.Set(ctx, PrefixUnreadTotal+userID, total, TTLUnreadTotal)
}

func (s *service) InvalidateUnreadTotal(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = fmt.Sprintf("%s%s", PrefixUnreadTotal, id)
	}
	return s.Delete(ctx, keys...)
}
