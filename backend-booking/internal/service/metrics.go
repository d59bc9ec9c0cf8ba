package service

import (
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
)

// Metrics holds the booking engine instruments. Nil instruments record nothing.
type Metrics struct {
	RequestsCreated    *telemetry.Counter
	RequestsResolved   *telemetry.Counter
	SeatConflicts      *telemetry.Counter
	CommissionPayouts  *telemetry.Counter
	CommissionFailures *telemetry.Counter
	Refunds            *telemetry.Counter
	Notifications      *telemetry.Counter
	CascadeDuration    *telemetry.Histogram
}

// NewMetrics registers the booking instruments on the global meter
func NewMetrics() *Metrics {
	counter := func(name, desc string) *telemetry.Counter {
		c, err := telemetry.NewCounter(telemetry.MetricOpts{Name: name, Description: desc, Unit: "1"})
		if err != nil {
			return nil
		}
		return c
	}

	m := &Metrics{
		RequestsCreated:    counter("booking.ticket_requests.created", "Ticket requests filed"),
		RequestsResolved:   counter("booking.ticket_requests.resolved", "Ticket requests moved to a terminal status"),
		SeatConflicts:      counter("booking.seat_conflicts", "Book confirmations rejected by a seat collision"),
		CommissionPayouts:  counter("booking.commission.payouts", "Commission history rows written"),
		CommissionFailures: counter("booking.commission.failures", "Tickets whose cascade rolled back"),
		Refunds:            counter("booking.refunds", "Refunds completed"),
		Notifications:      counter("booking.notifications", "Notifications persisted"),
	}
	if h, err := telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "booking.commission.cascade_duration",
		Description: "Duration of one trip commission cascade",
		Unit:        "ms",
	}); err == nil {
		m.CascadeDuration = h
	}
	return m
}

func orNopMetrics(m *Metrics) *Metrics {
	if m == nil {
		return &Metrics{}
	}
	return m
}
