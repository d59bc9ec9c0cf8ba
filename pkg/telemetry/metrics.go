package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new counter metric
func NewCounter(opts MetricOpts) (*Counter, error) {
	counter, err := GetMeter().Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by the given value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram wraps an OTel histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a new histogram metric
func NewHistogram(opts MetricOpts) (*Histogram, error) {
	histogram, err := GetMeter().Float64Histogram(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Common metric attribute keys
const (
	AttrTripID        = "trip.id"
	AttrTicketID      = "ticket.id"
	AttrRequestID     = "ticket_request.id"
	AttrRequestTitle  = "ticket_request.title"
	AttrRequestStatus = "ticket_request.status"
	AttrUserID        = "user.id"
	AttrErrorType     = "error.type"
)

func TripIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrTripID, id)
}

func TicketIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrTicketID, id)
}

func RequestIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

func RequestTitleAttr(title string) attribute.KeyValue {
	return attribute.String(AttrRequestTitle, title)
}

func RequestStatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrRequestStatus, status)
}

func UserIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

func ErrorTypeAttr(errType string) attribute.KeyValue {
	return attribute.String(AttrErrorType, errType)
}
