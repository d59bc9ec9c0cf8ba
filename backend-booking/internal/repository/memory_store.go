package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/shopspring/decimal"
)

type memTxKey struct{}

// MemoryStore is an in-process implementation of every repository.
// Transactions are serialized through one writer lock and a failed
// transaction restores the snapshot taken when it began.
type MemoryStore struct {
	mu sync.Mutex

	trips         map[string]*domain.Trip
	seatMaps      map[string]*domain.SeatMap
	seatMapByTrip map[string]string
	tickets       map[string]*domain.Ticket
	requests      map[string]*domain.TicketRequest
	users         map[string]*domain.User
	roles         map[string]*domain.Role
	commissions   map[string]*domain.Commission
	bankAccounts  map[string]*domain.BankAccount
	commissionLog []*domain.CommissionPaidHistory
	refundLog     []*domain.RefundHistory
	notifications []*domain.Notification
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:         make(map[string]*domain.Trip),
		seatMaps:      make(map[string]*domain.SeatMap),
		seatMapByTrip: make(map[string]string),
		tickets:       make(map[string]*domain.Ticket),
		requests:      make(map[string]*domain.TicketRequest),
		users:         make(map[string]*domain.User),
		roles:         make(map[string]*domain.Role),
		commissions:   make(map[string]*domain.Commission),
		bankAccounts:  make(map[string]*domain.BankAccount),
	}
}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryStore)
	return owner == s
}

func (s *MemoryStore) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx runs fn while holding the writer lock; state is restored if fn fails
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	trips         map[string]*domain.Trip
	seatMaps      map[string]*domain.SeatMap
	seatMapByTrip map[string]string
	tickets       map[string]*domain.Ticket
	requests      map[string]*domain.TicketRequest
	users         map[string]*domain.User
	commissionLog int
	refundLog     int
	notifications int
}

func (s *MemoryStore) snapshot() *memSnapshot {
	snap := &memSnapshot{
		trips:         make(map[string]*domain.Trip, len(s.trips)),
		seatMaps:      make(map[string]*domain.SeatMap, len(s.seatMaps)),
		seatMapByTrip: make(map[string]string, len(s.seatMapByTrip)),
		tickets:       make(map[string]*domain.Ticket, len(s.tickets)),
		requests:      make(map[string]*domain.TicketRequest, len(s.requests)),
		users:         make(map[string]*domain.User, len(s.users)),
		commissionLog: len(s.commissionLog),
		refundLog:     len(s.refundLog),
		notifications: len(s.notifications),
	}
	for k, v := range s.trips {
		snap.trips[k] = cloneTrip(v)
	}
	for k, v := range s.seatMaps {
		snap.seatMaps[k] = cloneSeatMap(v)
	}
	for k, v := range s.seatMapByTrip {
		snap.seatMapByTrip[k] = v
	}
	for k, v := range s.tickets {
		snap.tickets[k] = cloneTicket(v)
	}
	for k, v := range s.requests {
		snap.requests[k] = cloneRequest(v)
	}
	for k, v := range s.users {
		snap.users[k] = cloneUser(v)
	}
	return snap
}

// restore rolls back to snap. History logs are append-only so truncation is enough.
func (s *MemoryStore) restore(snap *memSnapshot) {
	s.trips = snap.trips
	s.seatMaps = snap.seatMaps
	s.seatMapByTrip = snap.seatMapByTrip
	s.tickets = snap.tickets
	s.requests = snap.requests
	s.users = snap.users
	s.commissionLog = s.commissionLog[:snap.commissionLog]
	s.refundLog = s.refundLog[:snap.refundLog]
	s.notifications = s.notifications[:snap.notifications]
}

// --- seeding, used by tests and local runs ---

// PutTrip stores a trip and creates its empty seat map
func (s *MemoryStore) PutTrip(trip *domain.Trip) *domain.SeatMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[trip.ID] = cloneTrip(trip)
	seatMap := &domain.SeatMap{ID: "seatmap-" + trip.ID, TripID: trip.ID, BookedSeats: domain.Seats{}}
	s.seatMaps[seatMap.ID] = seatMap
	s.seatMapByTrip[trip.ID] = seatMap.ID
	return cloneSeatMap(seatMap)
}

// PutUser stores a user
func (s *MemoryStore) PutUser(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = cloneUser(user)
}

// PutRole stores a role
func (s *MemoryStore) PutRole(role *domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *role
	cp.ParentIDs = append([]string(nil), role.ParentIDs...)
	cp.Permissions = append([]string(nil), role.Permissions...)
	s.roles[role.ID] = &cp
}

// PutCommission stores a commission rate for a role
func (s *MemoryStore) PutCommission(c *domain.Commission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.commissions[c.RoleID] = &cp
}

// PutBankAccount stores a bank account
func (s *MemoryStore) PutBankAccount(a *domain.BankAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.bankAccounts[a.UserID] = &cp
}

// PutTicket stores a ticket as-is
func (s *MemoryStore) PutTicket(t *domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = cloneTicket(t)
}

// CommissionHistory returns a copy of every commission row
func (s *MemoryStore) CommissionHistory() []*domain.CommissionPaidHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.CommissionPaidHistory(nil), s.commissionLog...)
}

// RefundHistory returns a copy of every refund row
func (s *MemoryStore) RefundHistory() []*domain.RefundHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.RefundHistory(nil), s.refundLog...)
}

// TicketsOfTrip returns every ticket of a trip regardless of status
func (s *MemoryStore) TicketsOfTrip(tripID string) []*domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Ticket
	for _, t := range s.tickets {
		if t.TripID == tripID {
			out = append(out, cloneTicket(t))
		}
	}
	sortTickets(out)
	return out
}

// --- repository views ---

// Trips returns the TripRepository view
func (s *MemoryStore) Trips() TripRepository { return memTrips{s} }

// SeatMaps returns the SeatMapRepository view
func (s *MemoryStore) SeatMaps() SeatMapRepository { return memSeatMaps{s} }

// TicketStore returns the TicketRepository view
func (s *MemoryStore) TicketStore() TicketRepository { return memTickets{s} }

// Requests returns the TicketRequestRepository view
func (s *MemoryStore) Requests() TicketRequestRepository { return memRequests{s} }

// Users returns the UserRepository view
func (s *MemoryStore) Users() UserRepository { return memUsers{s} }

// Roles returns the RoleRepository view
func (s *MemoryStore) Roles() RoleRepository { return memRoles{s} }

// BankAccounts returns the BankAccountRepository view
func (s *MemoryStore) BankAccounts() BankAccountRepository { return memBankAccounts{s} }

// Ledger returns the LedgerRepository view
func (s *MemoryStore) Ledger() LedgerRepository { return memLedger{s} }

// Notifications returns the NotificationRepository view
func (s *MemoryStore) Notifications() NotificationRepository { return memNotifications{s} }

// --- trips ---

type memTrips struct{ s *MemoryStore }

func (r memTrips) Create(ctx context.Context, trip *domain.Trip) error {
	defer r.s.lock(ctx)()
	r.s.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (r memTrips) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	defer r.s.lock(ctx)()
	trip, ok := r.s.trips[id]
	if !ok {
		return nil, nil
	}
	return cloneTrip(trip), nil
}

func (r memTrips) LockByID(ctx context.Context, id string) (*domain.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r memTrips) UpdateStatus(ctx context.Context, id string, status domain.TripStatus) error {
	defer r.s.lock(ctx)()
	trip, ok := r.s.trips[id]
	if !ok {
		return domain.ErrTripNotFound
	}
	trip.Status = status
	trip.UpdatedAt = time.Now()
	return nil
}

func (r memTrips) AdjustAvailableSeats(ctx context.Context, id string, delta int) (*domain.Trip, error) {
	defer r.s.lock(ctx)()
	trip, ok := r.s.trips[id]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	if !trip.CanAdjust(delta) {
		return nil, domain.ErrCapacityExceeded
	}
	trip.AvailableSeats += delta
	trip.UpdatedAt = time.Now()
	return cloneTrip(trip), nil
}

func (r memTrips) Resize(ctx context.Context, id string, totalSeats int) (*domain.Trip, error) {
	defer r.s.lock(ctx)()
	trip, ok := r.s.trips[id]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	if err := trip.Resize(totalSeats); err != nil {
		return nil, err
	}
	trip.UpdatedAt = time.Now()
	return cloneTrip(trip), nil
}

func (r memTrips) ListCompletedWithUnpaid(ctx context.Context, limit int) ([]string, error) {
	defer r.s.lock(ctx)()
	seen := make(map[string]struct{})
	for _, t := range r.s.tickets {
		trip, ok := r.s.trips[t.TripID]
		if !ok || trip.Status != domain.TripStatusCompleted {
			continue
		}
		if t.Status == domain.TicketStatusConfirmed && !t.CommissionPaid {
			seen[t.TripID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// --- seat maps ---

type memSeatMaps struct{ s *MemoryStore }

func (r memSeatMaps) Create(ctx context.Context, seatMap *domain.SeatMap) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.seatMapByTrip[seatMap.TripID]; ok {
		return domain.ConflictError("seat map already exists for trip")
	}
	cp := &domain.SeatMap{ID: seatMap.ID, TripID: seatMap.TripID, BookedSeats: domain.Seats{}}
	r.s.seatMaps[cp.ID] = cp
	r.s.seatMapByTrip[cp.TripID] = cp.ID
	return nil
}

func (r memSeatMaps) GetByTripID(ctx context.Context, tripID string) (*domain.SeatMap, error) {
	defer r.s.lock(ctx)()
	id, ok := r.s.seatMapByTrip[tripID]
	if !ok {
		return nil, nil
	}
	return cloneSeatMap(r.s.seatMaps[id]), nil
}

func (r memSeatMaps) AppendSeats(ctx context.Context, seatMapID string, seats domain.Seats) error {
	defer r.s.lock(ctx)()
	m, ok := r.s.seatMaps[seatMapID]
	if !ok {
		return domain.ErrSeatMapNotFound
	}
	if seats.HasDuplicates() || len(m.Collisions(seats)) > 0 {
		return domain.ErrSeatAlreadyBooked
	}
	m.BookedSeats = append(m.BookedSeats, seats...)
	m.TotalBookedSeats += len(seats)
	return nil
}

func (r memSeatMaps) ReleaseSeats(ctx context.Context, seatMapID string, seats domain.Seats) (int, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.seatMaps[seatMapID]
	if !ok {
		return 0, domain.ErrSeatMapNotFound
	}
	remaining := m.BookedSeats.Subtract(seats)
	removed := len(m.BookedSeats) - len(remaining)
	m.BookedSeats = remaining
	m.TotalBookedSeats -= removed
	return removed, nil
}

// --- tickets ---

type memTickets struct{ s *MemoryStore }

func (r memTickets) Create(ctx context.Context, t *domain.Ticket) error {
	defer r.s.lock(ctx)()
	r.s.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (r memTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, nil
	}
	return cloneTicket(t), nil
}

func (r memTickets) LockByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r memTickets) Update(ctx context.Context, t *domain.Ticket) error {
	defer r.s.lock(ctx)()
	existing, ok := r.s.tickets[t.ID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	cp := cloneTicket(t)
	cp.CommissionPaid = existing.CommissionPaid || t.CommissionPaid
	cp.UpdatedAt = time.Now()
	r.s.tickets[t.ID] = cp
	return nil
}

func (r memTickets) ListByTrip(ctx context.Context, tripID string, status domain.TicketStatus) ([]*domain.Ticket, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Ticket
	for _, t := range r.s.tickets {
		if t.TripID == tripID && t.Status == status {
			out = append(out, cloneTicket(t))
		}
	}
	sortTickets(out)
	return out, nil
}

func (r memTickets) ListUnpaidByTrip(ctx context.Context, tripID string) ([]*domain.Ticket, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Ticket
	for _, t := range r.s.tickets {
		if t.TripID == tripID && t.Status == domain.TicketStatusConfirmed && !t.CommissionPaid {
			out = append(out, cloneTicket(t))
		}
	}
	sortTickets(out)
	return out, nil
}

// --- ticket requests ---

type memRequests struct{ s *MemoryStore }

func (r memRequests) Create(ctx context.Context, req *domain.TicketRequest) error {
	defer r.s.lock(ctx)()
	if req.TitleRequest == domain.TitleCancelTicket {
		for _, other := range r.s.requests {
			if other.TitleRequest == domain.TitleCancelTicket && other.TicketIDValue() == req.TicketIDValue() {
				return domain.ErrDuplicateCancelRequest
			}
		}
	}
	r.s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r memRequests) GetByID(ctx context.Context, id string) (*domain.TicketRequest, error) {
	defer r.s.lock(ctx)()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(req), nil
}

func (r memRequests) LockByID(ctx context.Context, id string) (*domain.TicketRequest, error) {
	return r.GetByID(ctx, id)
}

func (r memRequests) Update(ctx context.Context, req *domain.TicketRequest) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.requests[req.ID]; !ok {
		return domain.ErrTicketRequestNotFound
	}
	cp := cloneRequest(req)
	cp.UpdatedAt = time.Now()
	r.s.requests[req.ID] = cp
	return nil
}

func (r memRequests) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.requests[id]; !ok {
		return domain.ErrTicketRequestNotFound
	}
	delete(r.s.requests, id)
	return nil
}

func (r memRequests) HasCancelRequest(ctx context.Context, ticketID string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, req := range r.s.requests {
		if req.TitleRequest == domain.TitleCancelTicket && req.TicketIDValue() == ticketID {
			return true, nil
		}
	}
	return false, nil
}

func (r memRequests) List(ctx context.Context, filter *dto.TicketRequestListFilter) ([]*domain.TicketRequest, int, error) {
	defer r.s.lock(ctx)()
	var matched []*domain.TicketRequest
	for _, req := range r.s.requests {
		if filter.UserID != "" && req.UserID != filter.UserID {
			continue
		}
		if filter.TripID != "" && req.TripIDValue() != filter.TripID {
			continue
		}
		if filter.Status != "" && string(req.Status) != filter.Status {
			continue
		}
		if filter.TitleRequest != "" && string(req.TitleRequest) != filter.TitleRequest {
			continue
		}
		matched = append(matched, cloneRequest(req))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// --- users, roles, bank accounts ---

type memUsers struct{ s *MemoryStore }

func (r memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := cloneUser(u)
	if role, ok := r.s.roles[u.RoleID]; ok {
		cp.RoleName = role.Name
	}
	return cp, nil
}

func (r memUsers) CreditBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (r memUsers) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) error {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.Balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (r memUsers) ListUplineIDs(ctx context.Context, userID string) ([]string, error) {
	defer r.s.lock(ctx)()
	var out []string
	seen := map[string]bool{userID: true}
	cur, ok := r.s.users[userID]
	for depth := 0; ok && cur.ParentID != nil && depth < maxUplineDepth; depth++ {
		parentID := *cur.ParentID
		if seen[parentID] {
			break
		}
		seen[parentID] = true
		out = append(out, parentID)
		cur, ok = r.s.users[parentID]
	}
	return out, nil
}

func (r memUsers) ListAdminIDs(ctx context.Context) ([]string, error) {
	defer r.s.lock(ctx)()
	var out []string
	for id, u := range r.s.users {
		if role, ok := r.s.roles[u.RoleID]; ok && role.Name == domain.RoleAdmin {
			out = append(out, id)
		} else if u.RoleName == domain.RoleAdmin {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memRoles struct{ s *MemoryStore }

func (r memRoles) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	defer r.s.lock(ctx)()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, nil
	}
	cp := *role
	cp.ParentIDs = append([]string(nil), role.ParentIDs...)
	cp.Permissions = append([]string(nil), role.Permissions...)
	return &cp, nil
}

func (r memRoles) GetCommission(ctx context.Context, roleID string) (*domain.Commission, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.commissions[roleID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

type memBankAccounts struct{ s *MemoryStore }

func (r memBankAccounts) GetByUserID(ctx context.Context, userID string) (*domain.BankAccount, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.bankAccounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// --- ledger and notifications ---

type memLedger struct{ s *MemoryStore }

func (r memLedger) InsertCommissionPaid(ctx context.Context, e *domain.CommissionPaidHistory) error {
	defer r.s.lock(ctx)()
	cp := *e
	r.s.commissionLog = append(r.s.commissionLog, &cp)
	return nil
}

func (r memLedger) InsertRefund(ctx context.Context, e *domain.RefundHistory) error {
	defer r.s.lock(ctx)()
	cp := *e
	r.s.refundLog = append(r.s.refundLog, &cp)
	return nil
}

func (r memLedger) ListCommissionByTicket(ctx context.Context, ticketID string) ([]*domain.CommissionPaidHistory, error) {
	defer r.s.lock(ctx)()
	var out []*domain.CommissionPaidHistory
	for _, e := range r.s.commissionLog {
		if e.TicketID == ticketID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memLedger) ListRefundsByUser(ctx context.Context, userID string) ([]*domain.RefundHistory, error) {
	defer r.s.lock(ctx)()
	var out []*domain.RefundHistory
	for _, e := range r.s.refundLog {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memNotifications struct{ s *MemoryStore }

func (r memNotifications) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	defer r.s.lock(ctx)()
	for _, n := range notifications {
		cp := *n
		r.s.notifications = append(r.s.notifications, &cp)
	}
	return nil
}

func (r memNotifications) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	defer r.s.lock(ctx)()
	var out []*domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if n := r.s.notifications[i]; n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- copies ---

func cloneTrip(t *domain.Trip) *domain.Trip {
	cp := *t
	return &cp
}

func cloneSeatMap(m *domain.SeatMap) *domain.SeatMap {
	cp := *m
	cp.BookedSeats = append(domain.Seats{}, m.BookedSeats...)
	return &cp
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	cp := *t
	cp.Seats = append(domain.Seats(nil), t.Seats...)
	return &cp
}

func cloneRequest(r *domain.TicketRequest) *domain.TicketRequest {
	cp := *r
	cp.Seats = append(domain.Seats(nil), r.Seats...)
	if r.TripID != nil {
		v := *r.TripID
		cp.TripID = &v
	}
	if r.TicketID != nil {
		v := *r.TicketID
		cp.TicketID = &v
	}
	return &cp
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	if u.ParentID != nil {
		v := *u.ParentID
		cp.ParentID = &v
	}
	return &cp
}

func sortTickets(ts []*domain.Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}
