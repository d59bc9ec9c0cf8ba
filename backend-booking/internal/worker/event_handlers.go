package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/pkg/kafka"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"go.uber.org/zap"
)

// RequestNotifier turns ticket request events into notifications
type RequestNotifier interface {
	NotifyRequestCreated(ctx context.Context, evt *dto.TicketRequestCreatedEvent) error
	NotifyRequestResolved(ctx context.Context, evt *dto.TicketRequestConfirmedEvent) error
	NotifyCommissionPaid(ctx context.Context, result *dto.CascadeResult, recipients []string)
}

// CommissionPayer runs the commission cascade of a trip
type CommissionPayer interface {
	PayTripCommissions(ctx context.Context, tripID string) (*dto.CascadeResult, error)
}

// NotificationWorker consumes ticket request events
type NotificationWorker struct {
	notifier RequestNotifier
	log      *logger.Logger
}

// NewNotificationWorker creates a NotificationWorker
func NewNotificationWorker(notifier RequestNotifier, log *logger.Logger) *NotificationWorker {
	if log == nil {
		log = logger.NewNop()
	}
	return &NotificationWorker{notifier: notifier, log: log.Named("notification-worker")}
}

// Topics lists the topics the worker consumes
func (w *NotificationWorker) Topics() []string {
	return []string{dto.TopicTicketRequestCreated, dto.TopicTicketRequestConfirmed}
}

// Handle dispatches one message by topic
func (w *NotificationWorker) Handle(ctx context.Context, msg *kafka.Message) error {
	switch msg.Topic {
	case dto.TopicTicketRequestCreated:
		var evt dto.TicketRequestCreatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		return w.notifier.NotifyRequestCreated(ctx, &evt)
	case dto.TopicTicketRequestConfirmed:
		var evt dto.TicketRequestConfirmedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Topic, err)
		}
		return w.notifier.NotifyRequestResolved(ctx, &evt)
	default:
		w.log.Warn("unexpected topic", zap.String("topic", msg.Topic))
		return nil
	}
}

// CommissionWorker runs the cascade when a trip completes
type CommissionWorker struct {
	payer    CommissionPayer
	notifier RequestNotifier
	log      *logger.Logger
}

// NewCommissionWorker creates a CommissionWorker. notifier may be nil.
func NewCommissionWorker(payer CommissionPayer, notifier RequestNotifier, log *logger.Logger) *CommissionWorker {
	if log == nil {
		log = logger.NewNop()
	}
	return &CommissionWorker{payer: payer, notifier: notifier, log: log.Named("commission-worker")}
}

// Topics lists the topics the worker consumes
func (w *CommissionWorker) Topics() []string {
	return []string{dto.TopicTripCompleted}
}

// Handle pays the trip named in a trip.completed message
func (w *CommissionWorker) Handle(ctx context.Context, msg *kafka.Message) error {
	var evt dto.TripCompletedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Topic, err)
	}
	if evt.TripID == "" {
		return fmt.Errorf("decode %s: missing trip_id", msg.Topic)
	}

	result, err := w.payer.PayTripCommissions(ctx, evt.TripID)
	if err != nil {
		return fmt.Errorf("pay trip %s: %w", evt.TripID, err)
	}
	if w.notifier != nil && len(result.Credited) > 0 {
		w.notifier.NotifyCommissionPaid(ctx, result, result.Credited)
	}
	return nil
}
