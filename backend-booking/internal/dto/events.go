package dto

import (
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
)

// Topic names for booking events
const (
	TopicTicketRequestCreated   = "booking.ticket-request.created"
	TopicTicketRequestConfirmed = "booking.ticket-request.confirmed"
	TopicTripCompleted          = "booking.trip.completed"
)

// Event is a domain event published after a transaction commits
type Event interface {
	Topic() string
	// Key returns the Kafka message key for partitioning
	Key() string
}

// TicketRequestCreatedEvent is published when a client or agent files a request
type TicketRequestCreatedEvent struct {
	EventType    string              `json:"event_type"`
	RequestID    string              `json:"request_id"`
	UserID       string              `json:"user_id"`
	CreatedBy    string              `json:"created_by"`
	TripID       string              `json:"trip_id,omitempty"`
	TicketID     string              `json:"ticket_id,omitempty"`
	TitleRequest domain.RequestTitle `json:"title_request"`
	Seats        domain.Seats        `json:"seats,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

func (e *TicketRequestCreatedEvent) Topic() string { return TopicTicketRequestCreated }
func (e *TicketRequestCreatedEvent) Key() string   { return e.RequestID }

// NewTicketRequestCreatedEvent builds the event for req
func NewTicketRequestCreatedEvent(req *domain.TicketRequest) *TicketRequestCreatedEvent {
	return &TicketRequestCreatedEvent{
		EventType:    domain.NotificationTicketRequestCreated,
		RequestID:    req.ID,
		UserID:       req.UserID,
		CreatedBy:    req.CreatedBy,
		TripID:       req.TripIDValue(),
		TicketID:     req.TicketIDValue(),
		TitleRequest: req.TitleRequest,
		Seats:        req.Seats,
		Timestamp:    time.Now().UTC(),
	}
}

// TicketRequestConfirmedEvent is published when a request reaches a terminal status
type TicketRequestConfirmedEvent struct {
	EventType    string               `json:"event_type"`
	RequestID    string               `json:"request_id"`
	UserID       string               `json:"user_id"`
	TripID       string               `json:"trip_id,omitempty"`
	TicketID     string               `json:"ticket_id,omitempty"`
	TitleRequest domain.RequestTitle  `json:"title_request"`
	Status       domain.RequestStatus `json:"status"`
	Timestamp    time.Time            `json:"timestamp"`
}

func (e *TicketRequestConfirmedEvent) Topic() string { return TopicTicketRequestConfirmed }
func (e *TicketRequestConfirmedEvent) Key() string   { return e.RequestID }

// NewTicketRequestConfirmedEvent builds the event for req
func NewTicketRequestConfirmedEvent(req *domain.TicketRequest) *TicketRequestConfirmedEvent {
	return &TicketRequestConfirmedEvent{
		EventType:    domain.NotificationTicketRequestConfirmed,
		RequestID:    req.ID,
		UserID:       req.UserID,
		TripID:       req.TripIDValue(),
		TicketID:     req.TicketIDValue(),
		TitleRequest: req.TitleRequest,
		Status:       req.Status,
		Timestamp:    time.Now().UTC(),
	}
}

// TripCompletedEvent triggers the commission cascade
type TripCompletedEvent struct {
	EventType string    `json:"event_type"`
	TripID    string    `json:"trip_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *TripCompletedEvent) Topic() string { return TopicTripCompleted }
func (e *TripCompletedEvent) Key() string   { return e.TripID }

// NewTripCompletedEvent builds the event for tripID
func NewTripCompletedEvent(tripID string) *TripCompletedEvent {
	return &TripCompletedEvent{
		EventType: "trip.completed",
		TripID:    tripID,
		Timestamp: time.Now().UTC(),
	}
}
