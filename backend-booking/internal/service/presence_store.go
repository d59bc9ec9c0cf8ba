package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bamanh2802/bookingcar/pkg/redis"
)

const (
	presenceKeyPrefix      = "presence:"
	notificationChannelFmt = "notifications:%s"
	// DefaultPresenceTTL is how long a heartbeat keeps a user online
	DefaultPresenceTTL = 90 * time.Second
)

// RedisPresenceStore keeps online markers as expiring keys and pushes over Pub/Sub
type RedisPresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresenceStore creates a presence store
func NewRedisPresenceStore(client *redis.Client, ttl time.Duration) *RedisPresenceStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisPresenceStore{client: client, ttl: ttl}
}

// MarkOnline refreshes the user's presence key
func (p *RedisPresenceStore) MarkOnline(ctx context.Context, userID string) error {
	if err := p.client.SetEX(ctx, presenceKey(userID), "1", p.ttl); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

// Online filters userIDs down to those with a live presence key
func (p *RedisPresenceStore) Online(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}
	exists, err := p.client.ExistsMany(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("check presence: %w", err)
	}

	online := make([]string, 0, len(userIDs))
	for i, ok := range exists {
		if ok {
			online = append(online, userIDs[i])
		}
	}
	return online, nil
}

// Push publishes payload on the user's notification channel
func (p *RedisPresenceStore) Push(ctx context.Context, userID string, payload []byte) error {
	return p.client.Publish(ctx, NotificationChannel(userID), payload)
}

// NotificationChannel returns the Pub/Sub channel a user's client subscribes to
func NotificationChannel(userID string) string {
	return fmt.Sprintf(notificationChannelFmt, userID)
}

func presenceKey(userID string) string {
	return presenceKeyPrefix + userID
}
