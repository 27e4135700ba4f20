package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL is how long a delivered message id is remembered.
const DefaultDedupTTL = 72 * time.Hour

// ErrNotProcessed is returned by GetMetadata for an unknown message id.
var ErrNotProcessed = errors.New("message not processed")

// IdempotencyStore remembers delivered message ids in Redis
type IdempotencyStore struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewIdempotencyStore creates a new idempotency store. ttl <= 0 uses DefaultDedupTTL.
func NewIdempotencyStore(redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &IdempotencyStore{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "taskhub:email:sent:",
		logger: logger,
	}
}

func (s *IdempotencyStore) key(messageID string) string {
	return s.prefix + messageID
}

// IsProcessed checks if an email event has already been delivered
func (s *IdempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	exists, err := s.redis.Exists(ctx, s.key(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if message is processed: %w", err)
	}
	return exists > 0, nil
}

// MarkAsProcessed records delivery with SET NX. It returns false when another
// consumer got there first.
func (s *IdempotencyStore) MarkAsProcessed(ctx context.Context, event EmailEvent) (bool, error) {
	metadataJSON, err := json.Marshal(EmailMetadata{
		SentAt:    time.Now().UTC(),
		Recipient: event.Recipient,
		EventType: event.EventType,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	success, err := s.redis.SetNX(ctx, s.key(event.MessageID), metadataJSON, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}

	if !success {
		s.logger.Warn("Email already processed (duplicate detected)",
			"messageID", event.MessageID,
			"type", event.EventType)
	}
	return success, nil
}

// GetMetadata retrieves the metadata for a processed email
func (s *IdempotencyStore) GetMetadata(ctx context.Context, messageID string) (*EmailMetadata, error) {
	data, err := s.redis.Get(ctx, s.key(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var metadata EmailMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

// Count returns the number of remembered message ids. Keys expire on their own.
func (s *IdempotencyStore) Count(ctx context.Context) (int64, error) {
	var cursor uint64
	var count int64

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return count, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Ping checks the Redis connection.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
