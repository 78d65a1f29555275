// Package session keeps login sessions in Redis. A session maps an opaque
// bearer token to the username that logged in.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired tokens
var ErrNotFound = errors.New("session not found")

const defaultTTL = 24 * time.Hour

// Store is a Redis-backed session store
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a session store. A non-positive ttl falls back to 24h.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		client: client,
		prefix: "session:",
		ttl:    ttl,
	}
}

// Create starts a session for username and returns its token
func (s *Store) Create(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is required")
	}

	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), username, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

// Lookup resolves a token to its username and slides the expiry forward
func (s *Store) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}

	username, err := s.client.GetEx(ctx, s.key(token), s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return username, nil
}

// Delete ends a session. Deleting an unknown token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) key(token string) string {
	return s.prefix + token
}
