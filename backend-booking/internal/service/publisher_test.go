package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	msg, err := encodeEvent(dto.NewTripCompletedEvent("trip-9"))
	require.NoError(t, err)
	assert.Equal(t, dto.TopicTripCompleted, msg.Topic)
	assert.Equal(t, "trip-9", msg.Key)
	assert.Equal(t, "application/json", msg.Headers["content-type"])

	var evt dto.TripCompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, "trip-9", evt.TripID)
}

func TestAsyncEventPublisher(t *testing.T) {
	pub := NewAsyncEventPublisher(nil)

	var (
		mu   sync.Mutex
		keys []string
	)
	pub.Subscribe(dto.TopicTripCompleted, func(ctx context.Context, msg *kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, msg.Key)
		return nil
	})
	pub.Subscribe(dto.TopicTripCompleted, func(ctx context.Context, msg *kafka.Message) error {
		return assert.AnError
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pub.Publish(ctx, dto.NewTripCompletedEvent("trip-1")))
	// handlers are detached from the caller's context
	cancel()
	require.NoError(t, pub.Publish(context.Background(), dto.NewTripCompletedEvent("trip-2")))
	// a topic without subscribers is not an error
	require.NoError(t, pub.Publish(context.Background(), &dto.TicketRequestConfirmedEvent{RequestID: "req-1"}))

	pub.Close()
	assert.ElementsMatch(t, []string{"trip-1", "trip-2"}, keys)

	err := pub.Publish(context.Background(), dto.NewTripCompletedEvent("trip-4"))
	assert.Error(t, err)
}
