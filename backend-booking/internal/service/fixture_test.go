package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTripID   = "trip-1"
	roleAdmin    = "role-admin"
	roleAgentLv2 = "role-agent-lv2"
	roleClient   = "role-client"
	roleGuest    = "role-guest"
	userAdmin    = "user-admin"
	userAgent    = "user-agent"
	userClient   = "user-client"
	userGuest    = "user-guest"
)

var testPrice = decimal.NewFromInt(200000)

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event dto.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic()
	}
	return out
}

type fixture struct {
	store       *repository.MemoryStore
	now         time.Time
	users       repository.UserRepository
	ledger      *TicketLedger
	inventory   *SeatInventory
	refunds     *RefundService
	commissions *CommissionService
	trips       *TripService
	requests    TicketRequestService
	publisher   *recordingPublisher

	// refundTicket backs refund requests, booked on first use
	refundTicket *domain.Ticket
}

type fixtureOption func(*fixture)

// withUsers swaps the user repository, used to inject failures
func withUsers(wrap func(repository.UserRepository) repository.UserRepository) fixtureOption {
	return func(f *fixture) { f.users = wrap(f.users) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	f := &fixture{
		store:     store,
		now:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		users:     store.Users(),
		publisher: &recordingPublisher{},
	}
	for _, opt := range opts {
		opt(f)
	}

	store.PutRole(&domain.Role{ID: roleAdmin, Name: domain.RoleAdmin})
	store.PutRole(&domain.Role{ID: roleAgentLv2, Name: "AgentLv2"})
	store.PutRole(&domain.Role{ID: roleClient, Name: "Client"})
	store.PutRole(&domain.Role{ID: roleGuest, Name: "Guest"})
	store.PutCommission(&domain.Commission{RoleID: roleClient, Percent: decimal.NewFromInt(5)})
	store.PutCommission(&domain.Commission{RoleID: roleAgentLv2, Percent: decimal.NewFromInt(10)})

	admin, agent := userAdmin, userAgent
	store.PutUser(&domain.User{ID: userAdmin, RoleID: roleAdmin})
	store.PutUser(&domain.User{ID: userAgent, RoleID: roleAgentLv2, ParentID: &admin})
	store.PutUser(&domain.User{ID: userClient, RoleID: roleClient, ParentID: &agent})
	store.PutUser(&domain.User{ID: userGuest, RoleID: roleGuest})

	store.PutTrip(&domain.Trip{
		ID:             testTripID,
		TicketType:     "standard",
		TotalSeats:     40,
		AvailableSeats: 40,
		StartTime:      f.now.Add(24 * time.Hour),
		Status:         domain.TripStatusNotStarted,
	})

	f.ledger = NewTicketLedger(store.TicketStore())
	f.inventory = NewSeatInventory(store.SeatMaps(), store.Trips())
	f.refunds = NewRefundService(store, f.users, store.BankAccounts(), store.Ledger(), store.Requests(), nil, nil)
	f.commissions = NewCommissionService(&CommissionServiceConfig{
		Tx:      store,
		Trips:   store.Trips(),
		Tickets: f.ledger,
		Users:   f.users,
		Roles:   store.Roles(),
		Ledger:  store.Ledger(),
	})
	f.trips = NewTripService(&TripServiceConfig{
		Tx:          store,
		Trips:       store.Trips(),
		SeatMaps:    store.SeatMaps(),
		Tickets:     f.ledger,
		Inventory:   f.inventory,
		Commissions: f.commissions,
	})
	f.requests = NewTicketRequestService(&TicketRequestServiceConfig{
		Tx:        store,
		Requests:  store.Requests(),
		Trips:     store.Trips(),
		Tickets:   f.ledger,
		Inventory: f.inventory,
		Refunds:   f.refunds,
		Publisher: f.publisher,
		Now:       func() time.Time { return f.now },
	})
	return f
}

func clientPrincipal() *domain.Principal {
	return &domain.Principal{
		UserID:      userClient,
		RoleID:      roleClient,
		Permissions: []string{domain.PermTicketRequestCreate, domain.PermTicketRequestRead},
	}
}

func approverPrincipal() *domain.Principal {
	return &domain.Principal{
		UserID:      userAdmin,
		RoleID:      roleAdmin,
		RoleName:    domain.RoleAdmin,
		Permissions: []string{domain.PermTicketRequestApprove, domain.PermTicketRequestRead},
	}
}

func seatList(codes ...string) domain.Seats {
	out := make(domain.Seats, len(codes))
	for i, c := range codes {
		out[i] = domain.Seat{Code: c, Floor: 1}
	}
	return out
}

func statusPtr(s domain.RequestStatus) *domain.RequestStatus { return &s }

// book files a booking for the client and confirms it as the admin
func (f *fixture) book(t *testing.T, seats domain.Seats) (*domain.TicketRequest, *domain.Ticket) {
	t.Helper()
	ctx := context.Background()

	req, err := f.requests.Create(ctx, &dto.CreateTicketRequestRequest{
		TripID: testTripID,
		Seats:  seats,
		Price:  testPrice,
		Name:   "Somchai",
		Phone:  "0812345678",
	}, clientPrincipal())
	require.NoError(t, err)

	confirmed, err := f.requests.Update(ctx, req.ID, &dto.UpdateTicketRequestRequest{
		Status: statusPtr(domain.RequestStatusConfirmed),
	}, approverPrincipal())
	require.NoError(t, err)
	require.NotNil(t, confirmed.TicketID)

	ticket, err := f.ledger.GetTicket(ctx, *confirmed.TicketID)
	require.NoError(t, err)
	return confirmed, ticket
}

func (f *fixture) trip(t *testing.T) *domain.Trip {
	t.Helper()
	trip, err := f.store.Trips().GetByID(context.Background(), testTripID)
	require.NoError(t, err)
	require.NotNil(t, trip)
	return trip
}

func (f *fixture) seatMap(t *testing.T) *domain.SeatMap {
	t.Helper()
	m, err := f.store.SeatMaps().GetByTripID(context.Background(), testTripID)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func (f *fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.Balance
}

// assertInventoryConsistent checks that the seat map, trip capacity and live
// tickets agree and that no seat is held twice
func (f *fixture) assertInventoryConsistent(t *testing.T) {
	t.Helper()
	trip := f.trip(t)
	seatMap := f.seatMap(t)

	assert.Equal(t, trip.TotalSeats, seatMap.TotalBookedSeats+trip.AvailableSeats, "booked + available == total")
	assert.Len(t, seatMap.BookedSeats, seatMap.TotalBookedSeats)

	held := 0
	owner := make(map[domain.Seat]string)
	for _, ticket := range f.store.TicketsOfTrip(testTripID) {
		if !ticket.Status.HoldsSeats() {
			continue
		}
		held += ticket.SeatCount()
		for _, seat := range ticket.Seats {
			if other, ok := owner[seat]; ok {
				t.Errorf("seat %s held by tickets %s and %s", seat, other, ticket.ID)
			}
			owner[seat] = ticket.ID
		}
	}
	assert.Equal(t, seatMap.TotalBookedSeats, held, "live ticket seats == booked seats")
}

func assertDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.NewFromInt(want).Equal(got), "want %d got %s", want, got.String())
}
