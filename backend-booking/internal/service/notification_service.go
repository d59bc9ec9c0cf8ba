package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService persists notifications and pushes them to online users.
// Failures are logged and never reach the booking path.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	presence      PresenceStore
	log           *logger.Logger
	metrics       *Metrics
}

// NewNotificationService creates a NotificationService. presence may be nil.
func NewNotificationService(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	presence PresenceStore,
	log *logger.Logger,
	metrics *Metrics,
) *NotificationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		users:         users,
		presence:      presence,
		log:           log.Named("notification"),
		metrics:       orNopMetrics(metrics),
	}
}

// Dispatch stores one notification per target and pushes it to those online
func (s *NotificationService) Dispatch(ctx context.Context, eventType string, targets []string, payload any) {
	targets = uniqueIDs(targets)
	if len(targets) == 0 {
		return
	}
	log := s.log.WithContext(ctx).WithFields(zap.String("type", eventType))

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal notification payload", zap.Error(err))
		return
	}

	now := time.Now()
	batch := make([]*domain.Notification, len(targets))
	for i, userID := range targets {
		batch[i] = &domain.Notification{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      eventType,
			Payload:   raw,
			CreatedAt: now,
		}
	}
	if err := s.notifications.CreateBatch(ctx, batch); err != nil {
		log.Error("failed to persist notifications", zap.Int("targets", len(targets)), zap.Error(err))
		return
	}
	s.metrics.Notifications.Add(ctx, int64(len(batch)))

	if s.presence == nil {
		return
	}
	online, err := s.presence.Online(ctx, targets)
	if err != nil {
		log.Warn("presence lookup failed", zap.Error(err))
		return
	}
	byUser := make(map[string]*domain.Notification, len(batch))
	for _, n := range batch {
		byUser[n.UserID] = n
	}
	for _, userID := range online {
		msg, err := json.Marshal(byUser[userID])
		if err != nil {
			continue
		}
		if err := s.presence.Push(ctx, userID, msg); err != nil {
			log.Warn("push failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// NotifyRequestCreated tells the requester's upline agents and every admin
func (s *NotificationService) NotifyRequestCreated(ctx context.Context, evt *dto.TicketRequestCreatedEvent) error {
	upline, err := s.users.ListUplineIDs(ctx, evt.CreatedBy)
	if err != nil {
		return fmt.Errorf("list upline: %w", err)
	}
	admins, err := s.users.ListAdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	targets := make([]string, 0, len(upline)+len(admins))
	for _, id := range append(upline, admins...) {
		if id != evt.CreatedBy {
			targets = append(targets, id)
		}
	}
	s.Dispatch(ctx, domain.NotificationTicketRequestCreated, targets, evt)
	return nil
}

// NotifyRequestResolved tells the request owner about its new status
func (s *NotificationService) NotifyRequestResolved(ctx context.Context, evt *dto.TicketRequestConfirmedEvent) error {
	eventType := domain.NotificationTicketRequestConfirmed
	if evt.TitleRequest == domain.TitleCancelTicket && evt.Status == domain.RequestStatusCancelled {
		eventType = domain.NotificationTicketCancelled
	}
	s.Dispatch(ctx, eventType, []string{evt.UserID}, evt)
	return nil
}

// NotifyCommissionPaid tells each credited user about their payout
func (s *NotificationService) NotifyCommissionPaid(ctx context.Context, result *dto.CascadeResult, recipients []string) {
	s.Dispatch(ctx, domain.NotificationCommissionPaid, recipients, result)
}

// ListForUser returns the latest notifications of a user
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.notifications.ListByUser(ctx, userID, limit)
}

// Heartbeat marks the user online for the presence TTL
func (s *NotificationService) Heartbeat(ctx context.Context, userID string) error {
	if s.presence == nil {
		return nil
	}
	return s.presence.MarkOnline(ctx, userID)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
