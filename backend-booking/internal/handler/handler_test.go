package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/service"
	"github.com/bamanh2802/bookingcar/pkg/middleware"
	"github.com/bamanh2802/bookingcar/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-key-for-booking-handlers"
	testTripID = "trip-1"
	userAdmin  = "user-admin"
	userClient = "user-client"
	userOther  = "user-other"
	userGuest  = "user-guest"
	roleAdmin  = "role-admin"
	roleClient = "role-client"
	roleGuest  = "role-guest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

type testServer struct {
	store  *repository.MemoryStore
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	store.PutRole(&domain.Role{ID: roleClient, Name: "Client", Permissions: []string{
		domain.PermTicketRequestCreate,
		domain.PermTicketRequestRead,
		domain.PermTicketRead,
		domain.PermTripRead,
	}})
	store.PutRole(&domain.Role{ID: roleAdmin, Name: domain.RoleAdmin, ParentIDs: []string{roleClient}, Permissions: []string{
		domain.PermTicketRequestApprove,
		domain.PermTripManage,
		domain.PermCommissionPay,
	}})
	store.PutRole(&domain.Role{ID: roleGuest, Name: "Guest"})
	store.PutCommission(&domain.Commission{RoleID: roleClient, Percent: decimal.NewFromInt(5)})

	admin := userAdmin
	store.PutUser(&domain.User{ID: userAdmin, RoleID: roleAdmin, RoleName: domain.RoleAdmin})
	store.PutUser(&domain.User{ID: userClient, RoleID: roleClient, RoleName: "Client", ParentID: &admin})
	store.PutUser(&domain.User{ID: userOther, RoleID: roleClient, RoleName: "Client", ParentID: &admin})
	store.PutUser(&domain.User{ID: userGuest, RoleID: roleGuest, RoleName: "Guest"})
	store.PutTrip(&domain.Trip{
		ID:             testTripID,
		TicketType:     "standard",
		TotalSeats:     10,
		AvailableSeats: 10,
		StartTime:      time.Now().Add(48 * time.Hour),
		Status:         domain.TripStatusNotStarted,
	})

	ledger := service.NewTicketLedger(store.TicketStore())
	inventory := service.NewSeatInventory(store.SeatMaps(), store.Trips())
	refunds := service.NewRefundService(store, store.Users(), store.BankAccounts(), store.Ledger(), store.Requests(), nil, nil)
	commissions := service.NewCommissionService(&service.CommissionServiceConfig{
		Tx:      store,
		Trips:   store.Trips(),
		Tickets: ledger,
		Users:   store.Users(),
		Roles:   store.Roles(),
		Ledger:  store.Ledger(),
	})
	trips := service.NewTripService(&service.TripServiceConfig{
		Tx:          store,
		Trips:       store.Trips(),
		SeatMaps:    store.SeatMaps(),
		Tickets:     ledger,
		Inventory:   inventory,
		Commissions: commissions,
	})
	requests := service.NewTicketRequestService(&service.TicketRequestServiceConfig{
		Tx:        store,
		Requests:  store.Requests(),
		Trips:     store.Trips(),
		Tickets:   ledger,
		Inventory: inventory,
		Refunds:   refunds,
	})
	notifications := service.NewNotificationService(store.Notifications(), store.Users(), nil, nil, nil)
	perms := service.NewPermissionResolver(store.Roles())

	router := NewRouter(&RouterConfig{
		Health:         NewHealthHandler(nil),
		TicketRequests: NewTicketRequestHandler(requests, perms),
		Trips:          NewTripHandler(trips, ledger, commissions, perms),
		Notifications:  NewNotificationHandler(notifications, nil),
		Auth:           middleware.JWTMiddleware(&middleware.JWTConfig{Secret: testSecret}),
		Permissions:    perms,
	})
	return &testServer{store: store, router: router}
}

func bearer(userID, roleID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role_id": roleID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte(testSecret))
	return "Bearer " + signed
}

func (s *testServer) do(t *testing.T, method, path, userID, roleID string, body any) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", bearer(userID, roleID))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, &env
}

func bookBody(seats ...string) map[string]any {
	list := make([]map[string]any, len(seats))
	for i, code := range seats {
		list[i] = map[string]any{"code": code, "floor": 1}
	}
	return map[string]any{
		"title_request":   "BookTicket",
		"trip_id":         testTripID,
		"seats":           list,
		"price":           "200000",
		"passenger_name":  "Somchai",
		"passenger_phone": "0812345678",
	}
}

// confirmBooking files a booking for the client and confirms it as the admin
func (s *testServer) confirmBooking(t *testing.T, seats ...string) *domain.TicketRequest {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, bookBody(seats...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[domain.TicketRequest](t, env).ID

	rec, env = s.do(t, http.MethodPatch, "/api/v1/ticket-requests/"+id, userAdmin, roleAdmin, map[string]any{"status": "Confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.TicketRequest](t, env)
}

func decode[T any](t *testing.T, env *envelope) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return &out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = s.do(t, http.MethodGet, "/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady_DependencyDown(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
		"kafka":    nil,
	})
	r := gin.New()
	r.GET("/ready", h.Ready)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "ok", env.Error.Details["postgres"])
	assert.Equal(t, "connection refused", env.Error.Details["redis"])
	assert.NotContains(t, env.Error.Details, "kafka")
}

func TestTicketRequest_BookAndConfirm(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, bookBody("A1", "A2"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.TicketRequest](t, env)
	assert.Equal(t, domain.RequestStatusPending, created.Status)
	assert.Equal(t, userClient, created.UserID)

	// the owner cannot approve their own booking
	rec, env = s.do(t, http.MethodPatch, "/api/v1/ticket-requests/"+created.ID, userClient, roleClient, map[string]any{"status": "Confirmed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, response.ErrCodeForbidden, env.Error.Code)

	rec, env = s.do(t, http.MethodPatch, "/api/v1/ticket-requests/"+created.ID, userAdmin, roleAdmin, map[string]any{"status": "Confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[domain.TicketRequest](t, env)
	require.NotNil(t, confirmed.TicketID)

	rec, env = s.do(t, http.MethodGet, "/api/v1/tickets/"+*confirmed.TicketID, userClient, roleClient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ticket := decode[domain.Ticket](t, env)
	assert.Equal(t, domain.TicketStatusConfirmed, ticket.Status)
	assert.Len(t, ticket.Seats, 2)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/tickets/"+*confirmed.TicketID, userOther, roleClient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/v1/trips/"+testTripID, userClient, roleClient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trip := decode[dto.TripResponse](t, env)
	assert.Equal(t, 8, trip.AvailableSeats)
	assert.Equal(t, 2, trip.TotalBookedSeats)
}

func TestTicketRequest_SeatConflict(t *testing.T) {
	s := newTestServer(t)

	ids := make([]string, 2)
	for i, user := range []string{userClient, userOther} {
		rec, env := s.do(t, http.MethodPost, "/api/v1/ticket-requests", user, roleClient, bookBody("B1"))
		require.Equal(t, http.StatusCreated, rec.Code)
		ids[i] = decode[domain.TicketRequest](t, env).ID
	}

	rec, _ := s.do(t, http.MethodPatch, "/api/v1/ticket-requests/"+ids[0], userAdmin, roleAdmin, map[string]any{"status": "Confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodPatch, "/api/v1/ticket-requests/"+ids[1], userAdmin, roleAdmin, map[string]any{"status": "Confirmed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.ErrCodeSeatUnavailable, env.Error.Code)

	// the losing request was removed
	rec, env = s.do(t, http.MethodGet, "/api/v1/ticket-requests/"+ids[1], userOther, roleClient, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.ErrCodeNotFound, env.Error.Code)
}

func TestTicketRequest_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		user     string
		role     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"no token", http.MethodPost, "/api/v1/ticket-requests", "", "", bookBody("A1"), http.StatusUnauthorized, "MISSING_TOKEN"},
		{"missing permission", http.MethodPost, "/api/v1/ticket-requests", userGuest, roleGuest, bookBody("A1"), http.StatusForbidden, response.ErrCodeForbidden},
		{"malformed body", http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, "{", http.StatusBadRequest, response.ErrCodeBadRequest},
		{"no seats", http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, bookBody(), http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"unknown trip", http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, map[string]any{"trip_id": "nope", "seats": []map[string]any{{"code": "A1", "floor": 1}}}, http.StatusNotFound, response.ErrCodeNotFound},
		{"unknown request", http.MethodPatch, "/api/v1/ticket-requests/missing", userAdmin, roleAdmin, map[string]any{"status": "Rejected"}, http.StatusNotFound, response.ErrCodeNotFound},
		{"unknown status", http.MethodPatch, "/api/v1/ticket-requests/missing", userAdmin, roleAdmin, map[string]any{"status": "Paid"}, http.StatusBadRequest, response.ErrCodeValidationFailed},
		{"unknown trip get", http.MethodGet, "/api/v1/trips/nope", userClient, roleClient, nil, http.StatusNotFound, response.ErrCodeNotFound},
		{"trip manage denied", http.MethodPatch, "/api/v1/trips/" + testTripID + "/status", userClient, roleClient, map[string]any{"status": "Completed"}, http.StatusForbidden, response.ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, tt.method, tt.path, tt.user, tt.role, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestTicketRequest_ListScopesToCaller(t *testing.T) {
	s := newTestServer(t)

	for i, user := range []string{userClient, userOther} {
		seat := []string{"C1", "C2"}[i]
		rec, _ := s.do(t, http.MethodPost, "/api/v1/ticket-requests", user, roleClient, bookBody(seat))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := s.do(t, http.MethodGet, "/api/v1/ticket-requests?user_id="+userOther, userClient, roleClient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := *decode[[]domain.TicketRequest](t, env)
	require.Len(t, items, 1)
	assert.Equal(t, userClient, items[0].UserID)

	rec, env = s.do(t, http.MethodGet, "/api/v1/ticket-requests", userAdmin, roleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, *decode[[]domain.TicketRequest](t, env), 2)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(2), env.Meta.Total)
}

func TestTicketRequest_Delete(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, bookBody("D1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[domain.TicketRequest](t, env).ID

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/ticket-requests/"+id, userOther, roleClient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/ticket-requests/"+id, userClient, roleClient, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/ticket-requests/"+id, userClient, roleClient, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrip_CompleteAndPay(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/ticket-requests", userClient, roleClient, bookBody("E1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[domain.TicketRequest](t, env).ID
	rec, _ = s.do(t, http.MethodPatch, "/api/v1/ticket-requests/"+id, userAdmin, roleAdmin, map[string]any{"status": "Confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	// commissions cannot be paid before the trip completes
	rec, env = s.do(t, http.MethodPost, "/api/v1/trips/"+testTripID+"/commissions", userAdmin, roleAdmin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.ErrCodeConflict, env.Error.Code)

	rec, env = s.do(t, http.MethodPatch, "/api/v1/trips/"+testTripID+"/status", userAdmin, roleAdmin, map[string]any{"status": "Completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.TripStatusCompleted, decode[domain.Trip](t, env).Status)

	// completion ran the cascade inline: 200000 * 5%
	client, err := s.store.Users().GetByID(context.Background(), userClient)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10000).Equal(client.Balance), client.Balance.String())

	// a manual run finds nothing left to pay
	rec, env = s.do(t, http.MethodPost, "/api/v1/trips/"+testTripID+"/commissions", userAdmin, roleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[dto.CascadeResult](t, env)
	assert.Equal(t, 0, result.Paid)

	rec, env = s.do(t, http.MethodPatch, "/api/v1/trips/"+testTripID+"/status", userAdmin, roleAdmin, map[string]any{"status": "Cancelled"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.ErrCodeInvalidTransition, env.Error.Code)
}

func TestTrip_CreateAndResize(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/trips", userAdmin, roleAdmin, map[string]any{
		"ticket_type": "vip",
		"total_seats": 4,
		"start_time":  time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	trip := decode[domain.Trip](t, env)
	assert.Equal(t, 4, trip.AvailableSeats)
	assert.Equal(t, domain.TripStatusNotStarted, trip.Status)

	rec, env = s.do(t, http.MethodPatch, "/api/v1/trips/"+trip.ID+"/seats", userAdmin, roleAdmin, map[string]any{"total_seats": 6})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resized := decode[domain.Trip](t, env)
	assert.Equal(t, 6, resized.TotalSeats)
	assert.Equal(t, 6, resized.AvailableSeats)

	rec, _ = s.do(t, http.MethodPatch, "/api/v1/trips/"+trip.ID+"/seats", userAdmin, roleAdmin, map[string]any{"delta": -3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrip_ResizeKeepsBookedSeats(t *testing.T) {
	s := newTestServer(t)
	s.confirmBooking(t, "A1", "A2")

	rec, env := s.do(t, http.MethodPatch, "/api/v1/trips/"+testTripID+"/seats", userAdmin, roleAdmin, map[string]any{"total_seats": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.ErrCodeCapacityExceeded, env.Error.Code)

	rec, env = s.do(t, http.MethodPatch, "/api/v1/trips/"+testTripID+"/seats", userAdmin, roleAdmin, map[string]any{"total_seats": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	trip := decode[domain.Trip](t, env)
	assert.Equal(t, 5, trip.TotalSeats)
	assert.Equal(t, 3, trip.AvailableSeats)

	rec, env = s.do(t, http.MethodGet, "/api/v1/trips/"+testTripID, userClient, roleClient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dto.TripResponse](t, env)
	assert.Equal(t, got.TotalSeats, got.TotalBookedSeats+got.AvailableSeats)
	assert.Equal(t, 2, got.TotalBookedSeats)
}

func TestNotifications_ListAndHeartbeat(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/notifications", userClient, roleClient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *decode[[]domain.Notification](t, env))

	rec, _ = s.do(t, http.MethodPost, "/api/v1/presence/heartbeat", userClient, roleClient, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// no redis client means no live stream
	rec, _ = s.do(t, http.MethodGet, "/api/v1/notifications/stream", userClient, roleClient, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuditActionFor(t *testing.T) {
	tests := []struct {
		status domain.RequestStatus
		want   middleware.AuditAction
	}{
		{domain.RequestStatusConfirmed, middleware.AuditActionConfirm},
		{domain.RequestStatusRejected, middleware.AuditActionReject},
		{domain.RequestStatusCancelled, middleware.AuditActionCancel},
		{domain.RequestStatusRefunded, middleware.AuditActionRefund},
		{domain.RequestStatusPending, middleware.AuditActionUpdate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, auditActionFor(tt.status), string(tt.status))
	}
}
