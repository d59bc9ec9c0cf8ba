package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/pkg/kafka"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"go.uber.org/zap"
)

// KafkaEventPublisher publishes events as JSON records keyed by aggregate id
type KafkaEventPublisher struct {
	producer *kafka.Producer
}

// NewKafkaEventPublisher creates a publisher on top of a producer
func NewKafkaEventPublisher(producer *kafka.Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// Publish sends event to its topic
func (p *KafkaEventPublisher) Publish(ctx context.Context, event dto.Event) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Topic(), err)
	}
	return nil
}

func encodeEvent(event dto.Event) (*kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.Topic(), err)
	}
	return &kafka.Message{
		Topic:     event.Topic(),
		Key:       event.Key(),
		Value:     value,
		Headers:   map[string]string{"content-type": "application/json"},
		Timestamp: time.Now(),
	}, nil
}

// AsyncEventPublisher delivers events to in-process handlers on background
// goroutines. It stands in for Kafka when no broker is configured.
type AsyncEventPublisher struct {
	mu       sync.RWMutex
	handlers map[string][]kafka.Handler
	wg       sync.WaitGroup
	log      *logger.Logger
	closed   bool
}

// NewAsyncEventPublisher creates an in-process publisher
func NewAsyncEventPublisher(log *logger.Logger) *AsyncEventPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &AsyncEventPublisher{
		handlers: make(map[string][]kafka.Handler),
		log:      log.Named("async-publisher"),
	}
}

// Subscribe registers handler for topic
func (p *AsyncEventPublisher) Subscribe(topic string, handler kafka.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[topic] = append(p.handlers[topic], handler)
}

// Publish hands the encoded event to every subscriber of its topic
func (p *AsyncEventPublisher) Publish(ctx context.Context, event dto.Event) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publish %s: publisher closed", event.Topic())
	}

	// Detach from the request context so handlers outlive the HTTP call
	bg := context.WithoutCancel(ctx)
	for _, h := range p.handlers[msg.Topic] {
		p.wg.Add(1)
		go func(h kafka.Handler) {
			defer p.wg.Done()
			if err := h(bg, msg); err != nil {
				p.log.Error("event handler failed",
					zap.String("topic", msg.Topic),
					zap.String("key", msg.Key),
					zap.Error(err),
				)
			}
		}(h)
	}
	return nil
}

// Close rejects new events and waits for in-flight handlers
func (p *AsyncEventPublisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
