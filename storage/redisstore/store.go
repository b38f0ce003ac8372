// Package redisstore implements storage.Storage on Redis for deployments where
// several client processes share one device profile.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-storefront-client/storage"
)

const defaultOpTimeout = 2 * time.Second

type Store struct {
	client    *goredis.Client
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
}

var _ storage.Storage = (*Store)(nil)

type Option func(*Store)

// WithTTL expires every written key after ttl. Zero keeps keys forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

func New(client *goredis.Client, prefix string, options ...Option) *Store {
	s := &Store{
		client:    client,
		prefix:    prefix,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Get is synchronous from the caller's point of view; each call is bounded by
// the store's operation timeout.
func (s *Store) Get(key string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w: %w", key, storage.ErrUnavailable, err)
	}
	return v, nil
}

func (s *Store) Set(key, value string) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w: %w", key, storage.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w: %w", key, storage.ErrUnavailable, err)
	}
	return nil
}
