// Package session resolves opaque session tokens to the acting user.
// Sessions are issued by the login flow and stored in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNoSession means the token is unknown, expired or malformed.
var ErrNoSession = errors.New("no valid session")

// Session is the authenticated caller.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store looks sessions up by token.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
}

// RedisStore keeps sessions as JSON under session:<token> with a TTL.
type RedisStore struct {
	rdb      *redis.Client
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now, newToken: uuid.NewString}
}

func key(token string) string { return "session:" + token }

// Create issues a new session token for the user.
func (s *RedisStore) Create(ctx context.Context, userID, role string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	now := s.now()
	sess := &Session{
		Token:     s.newToken(),
		UserID:    userID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, key(sess.Token), string(data), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Get returns the live session for token, or ErrNoSession.
func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrNoSession
	}
	data, err := s.rdb.Get(ctx, key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, ErrNoSession
	}
	if sess.UserID == "" || !s.now().Before(sess.ExpiresAt) {
		return nil, ErrNoSession
	}
	sess.Token = token
	return &sess, nil
}

// Revoke deletes the session.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, key(token)).Err()
}
