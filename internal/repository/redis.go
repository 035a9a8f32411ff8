package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"matchcore/internal/model"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound is returned when no archive exists for a session id
var ErrSessionNotFound = errors.New("archived session not found")

// RedisSessionArchive stores closed conversation sessions in Redis as JSON
type RedisSessionArchive struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionArchive connects to Redis and verifies the connection.
// ttlDays of 0 keeps archives with no expiry.
func NewRedisSessionArchive(ctx context.Context, addr, password string, db, ttlDays int) (*RedisSessionArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisSessionArchive{
		client: client,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
	}, nil
}

// Close closes the Redis connection
func (a *RedisSessionArchive) Close() error {
	return a.client.Close()
}

// ArchiveSession stores the closed session under session:<id>
func (a *RedisSessionArchive) ArchiveSession(ctx context.Context, sess *model.ConversationSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.SessionID, err)
	}

	key := sessionKeyPrefix + sess.SessionID
	if err := a.client.Set(ctx, key, data, a.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", sess.SessionID, err)
	}

	return nil
}

// GetArchivedSession loads a previously archived session
func (a *RedisSessionArchive) GetArchivedSession(ctx context.Context, sessionID string) (*model.ConversationSession, error) {
	val, err := a.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var sess model.ConversationSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}

	return &sess, nil
}
