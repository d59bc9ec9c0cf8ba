package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionDelete  AuditAction = "delete"
	AuditActionConfirm AuditAction = "confirm"
	AuditActionReject  AuditAction = "reject"
	AuditActionCancel  AuditAction = "cancel"
	AuditActionRefund  AuditAction = "refund"
	AuditActionPayout  AuditAction = "payout"
	AuditActionView    AuditAction = "view"
)

// Context keys for audit data set by handlers
const (
	ContextKeyAuditAction     = "audit_action"
	ContextKeyAuditResourceID = "audit_resource_id"
	ContextKeyAuditMetadata   = "audit_metadata"
	contextKeyAuditSkip       = "audit_skip"
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`
	UserRole     string                 `json:"user_role,omitempty"`
	Action       AuditAction            `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	StatusCode   int                    `json:"status_code"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditSink persists flushed audit batches
type AuditSink interface {
	WriteAuditEntries(ctx context.Context, entries []*AuditEntry) error
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	Sink AuditSink
	// BufferSize is the size of the async audit buffer (default: 1000)
	BufferSize int
	// FlushInterval is how often to flush the buffer (default: 5 seconds)
	FlushInterval time.Duration
	// BatchSize is the maximum number of entries written in one flush (default: 100)
	BatchSize int
	// SkipPaths is a list of path prefixes to skip auditing
	SkipPaths []string
	// SkipMethods is a list of HTTP methods to skip (default: GET, HEAD, OPTIONS)
	SkipMethods []string
	// CaptureRequestBody stores the JSON request body (masked) in Payload
	CaptureRequestBody bool
	// MaxBodySize limits the size of captured body (default: 10KB)
	MaxBodySize int
	// SensitiveFields are field names that should be masked
	SensitiveFields []string
	Logger          *logger.Logger
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(sink AuditSink) *AuditConfig {
	return &AuditConfig{
		Sink:               sink,
		BufferSize:         1000,
		FlushInterval:      5 * time.Second,
		BatchSize:          100,
		SkipPaths:          []string{"/health", "/ready"},
		SkipMethods:        []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CaptureRequestBody: true,
		MaxBodySize:        10 * 1024,
		SensitiveFields:    []string{"password", "token", "secret", "account_number"},
	}
}

// AuditLogger buffers audit entries and flushes them from a background worker
type AuditLogger struct {
	config    *AuditConfig
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
	log       *logger.Logger
}

// NewAuditLogger creates a new audit logger and starts its worker
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 10 * 1024
	}
	log := config.Logger
	if log == nil {
		log = logger.NewNop()
	}

	al := &AuditLogger{
		config: config,
		buffer: make(chan *AuditEntry, config.BufferSize),
		log:    log,
	}

	al.wg.Add(1)
	go al.worker()

	return al
}

// Log adds an audit entry to the buffer without blocking; entries are dropped when full
func (al *AuditLogger) Log(entry *AuditEntry) bool {
	select {
	case al.buffer <- entry:
		return true
	default:
		al.log.Warn("audit buffer full, dropping entry", zap.String("action", string(entry.Action)))
		return false
	}
}

// Close drains the buffer and stops the worker
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 || al.config.Sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := al.config.Sink.WriteAuditEntries(ctx, entries); err != nil {
		al.log.Error("failed to write audit entries", zap.Int("count", len(entries)), zap.Error(err))
	}
}

// PostgresAuditSink writes audit batches to the audit_logs table
type PostgresAuditSink struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditSink creates a new PostgresAuditSink
func NewPostgresAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

// WriteAuditEntries inserts all entries in one round trip
func (s *PostgresAuditSink) WriteAuditEntries(ctx context.Context, entries []*AuditEntry) error {
	const query = `
		INSERT INTO audit_logs (
			id, user_id, user_role, action, resource_type, resource_id,
			status_code, ip_address, user_agent, request_id, payload, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		payload, _ := json.Marshal(e.Payload)
		metadata, _ := json.Marshal(e.Metadata)
		batch.Queue(query,
			e.ID, e.UserID, e.UserRole, string(e.Action), e.ResourceType, e.ResourceID,
			e.StatusCode, e.IPAddress, e.UserAgent, e.RequestID, payload, metadata, e.CreatedAt,
		)
	}

	return s.pool.SendBatch(ctx, batch).Close()
}

// AuditMiddleware records mutating requests through the audit logger
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	config := al.config

	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		var payload map[string]interface{}
		if config.CaptureRequestBody && c.Request.Body != nil {
			bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(config.MaxBodySize)))
			if err == nil && len(bodyBytes) > 0 {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				_ = json.Unmarshal(bodyBytes, &payload)
				payload = maskSensitiveFields(payload, config.SensitiveFields)
			}
		}

		startTime := time.Now()

		c.Next()

		if skip := c.GetBool(contextKeyAuditSkip); skip {
			return
		}

		entry := &AuditEntry{
			ID:         uuid.New().String(),
			Action:     defaultActionMapper(c.Request.Method),
			StatusCode: c.Writer.Status(),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			RequestID:  c.GetHeader("X-Request-ID"),
			Payload:    payload,
			CreatedAt:  startTime,
		}

		if userID, ok := GetUserID(c); ok && userID != "" {
			entry.UserID = &userID
		}
		if role, ok := GetRole(c); ok {
			entry.UserRole = role
		}

		resourceType, resourceID := defaultResourceExtractor(c.FullPath(), c.Param("id"))
		entry.ResourceType = resourceType
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}

		if v, exists := c.Get(ContextKeyAuditAction); exists {
			if action, ok := v.(AuditAction); ok {
				entry.Action = action
			}
		}
		if v := c.GetString(ContextKeyAuditResourceID); v != "" {
			entry.ResourceID = &v
		}
		if v, exists := c.Get(ContextKeyAuditMetadata); exists {
			if meta, ok := v.(map[string]interface{}); ok {
				entry.Metadata = meta
			}
		}

		al.Log(entry)
	}
}

func defaultActionMapper(method string) AuditAction {
	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionView
	}
}

// defaultResourceExtractor derives the resource from the route template.
// Example: /api/v1/ticket-requests/:id -> ("ticket-request", id)
func defaultResourceExtractor(route, id string) (string, string) {
	parts := strings.Split(strings.Trim(route, "/"), "/")

	for _, part := range parts {
		if part == "" || part == "api" || strings.HasPrefix(part, ":") || (len(part) > 1 && part[0] == 'v' && part[1] >= '0' && part[1] <= '9') {
			continue
		}
		return strings.TrimSuffix(part, "s"), id
	}
	return "unknown", id
}

func maskSensitiveFields(data map[string]interface{}, sensitiveFields []string) map[string]interface{} {
	if data == nil {
		return nil
	}

	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		lowKey := strings.ToLower(k)
		masked := false
		for _, sf := range sensitiveFields {
			if strings.Contains(lowKey, strings.ToLower(sf)) {
				result[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			result[k] = maskSensitiveFields(nested, sensitiveFields)
		} else {
			result[k] = v
		}
	}
	return result
}

// SetAuditAction overrides the action derived from the HTTP method
func SetAuditAction(c *gin.Context, action AuditAction) {
	c.Set(ContextKeyAuditAction, action)
}

// SetAuditResourceID sets the resource ID for audit logging
func SetAuditResourceID(c *gin.Context, resourceID string) {
	c.Set(ContextKeyAuditResourceID, resourceID)
}

// SetAuditMetadata sets additional metadata for audit logging
func SetAuditMetadata(c *gin.Context, metadata map[string]interface{}) {
	c.Set(ContextKeyAuditMetadata, metadata)
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}
