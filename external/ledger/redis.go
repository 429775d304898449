package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps one key per handled event. Keys never expire.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(ctx context.Context, redisURL string) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisLedger{client: client}, nil
}

var _ ledger.Ledger = (*RedisLedger)(nil)

func eventKey(eventID string) string {
	return fmt.Sprintf("ledger:event:%s", eventID)
}

func (l *RedisLedger) IsHandled(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkHandled keeps the first handled timestamp on repeated calls.
func (l *RedisLedger) MarkHandled(ctx context.Context, eventID string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := l.client.SetNX(ctx, eventKey(eventID), now, 0).Err(); err != nil {
		return fmt.Errorf("mark %s handled: %w", eventID, err)
	}
	return nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
