package di

import (
	"fmt"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/handler"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/service"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/worker"
	"github.com/bamanh2802/bookingcar/pkg/config"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/bamanh2802/bookingcar/pkg/kafka"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/bamanh2802/bookingcar/pkg/redis"
	"github.com/shopspring/decimal"
)

// Repositories groups the storage collaborators of the booking engine
type Repositories struct {
	Tx            repository.Transactor
	Trips         repository.TripRepository
	SeatMaps      repository.SeatMapRepository
	Tickets       repository.TicketRepository
	Requests      repository.TicketRequestRepository
	Users         repository.UserRepository
	Roles         repository.RoleRepository
	BankAccounts  repository.BankAccountRepository
	Ledger        repository.LedgerRepository
	Notifications repository.NotificationRepository
}

// PostgresRepositories builds every repository on db
func PostgresRepositories(db *database.PostgresDB) *Repositories {
	return &Repositories{
		Tx:            db,
		Trips:         repository.NewPostgresTripRepository(db),
		SeatMaps:      repository.NewPostgresSeatMapRepository(db),
		Tickets:       repository.NewPostgresTicketRepository(db),
		Requests:      repository.NewPostgresTicketRequestRepository(db),
		Users:         repository.NewPostgresUserRepository(db),
		Roles:         repository.NewPostgresRoleRepository(db),
		BankAccounts:  repository.NewPostgresBankAccountRepository(db),
		Ledger:        repository.NewPostgresLedgerRepository(db),
		Notifications: repository.NewPostgresNotificationRepository(db),
	}
}

// MemoryRepositories exposes an in-memory store through the repository set
func MemoryRepositories(store *repository.MemoryStore) *Repositories {
	return &Repositories{
		Tx:            store,
		Trips:         store.Trips(),
		SeatMaps:      store.SeatMaps(),
		Tickets:       store.TicketStore(),
		Requests:      store.Requests(),
		Users:         store.Users(),
		Roles:         store.Roles(),
		BankAccounts:  store.BankAccounts(),
		Ledger:        store.Ledger(),
		Notifications: store.Notifications(),
	}
}

// Container holds all dependencies for the booking service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	Repos *Repositories

	// Services
	TicketLedger         *service.TicketLedger
	SeatInventory        *service.SeatInventory
	RefundService        *service.RefundService
	CommissionService    *service.CommissionService
	TripService          *service.TripService
	TicketRequestService service.TicketRequestService
	NotificationService  *service.NotificationService
	PermissionResolver   *service.PermissionResolver

	// Workers
	NotificationWorker *worker.NotificationWorker
	CommissionWorker   *worker.CommissionWorker
	CommissionSweeper  *worker.CommissionSweeper

	// Handlers
	HealthHandler        *handler.HealthHandler
	TicketRequestHandler *handler.TicketRequestHandler
	TripHandler          *handler.TripHandler
	NotificationHandler  *handler.NotificationHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB *database.PostgresDB
	// Repos overrides the Postgres repositories built from DB
	Repos *Repositories
	// Redis enables presence tracking and live notification push
	Redis *redis.Client
	// Publisher receives domain events. Without one, notifications are not
	// dispatched and commissions are always paid inline.
	Publisher service.EventPublisher
	Booking   config.BookingConfig
	Logger    *logger.Logger
	Metrics   *service.Metrics
	// HealthChecks are probed by /ready in addition to DB and Redis
	HealthChecks map[string]handler.Pinger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	c := &Container{
		DB:    cfg.DB,
		Redis: cfg.Redis,
		Repos: cfg.Repos,
	}
	if c.Repos == nil {
		if c.DB == nil {
			return nil, fmt.Errorf("di: either DB or Repos is required")
		}
		c.Repos = PostgresRepositories(c.DB)
	}

	agencyPercent, err := parsePercent(cfg.Booking.AgencyCommissionPercent)
	if err != nil {
		return nil, err
	}

	// Initialize services
	r := c.Repos
	c.TicketLedger = service.NewTicketLedger(r.Tickets)
	c.SeatInventory = service.NewSeatInventory(r.SeatMaps, r.Trips)
	c.RefundService = service.NewRefundService(r.Tx, r.Users, r.BankAccounts, r.Ledger, r.Requests, log, cfg.Metrics)
	c.CommissionService = service.NewCommissionService(&service.CommissionServiceConfig{
		Tx:            r.Tx,
		Trips:         r.Trips,
		Tickets:       c.TicketLedger,
		Users:         r.Users,
		Roles:         r.Roles,
		Ledger:        r.Ledger,
		AgencyPercent: &agencyPercent,
		Logger:        log,
		Metrics:       cfg.Metrics,
	})

	tripCfg := &service.TripServiceConfig{
		Tx:          r.Tx,
		Trips:       r.Trips,
		SeatMaps:    r.SeatMaps,
		Tickets:     c.TicketLedger,
		Inventory:   c.SeatInventory,
		Commissions: c.CommissionService,
		Logger:      log,
	}
	if cfg.Booking.AsyncCommission && cfg.Publisher != nil {
		tripCfg.Publisher = cfg.Publisher
	}
	c.TripService = service.NewTripService(tripCfg)

	c.TicketRequestService = service.NewTicketRequestService(&service.TicketRequestServiceConfig{
		Tx:        r.Tx,
		Requests:  r.Requests,
		Trips:     r.Trips,
		Tickets:   c.TicketLedger,
		Inventory: c.SeatInventory,
		Refunds:   c.RefundService,
		Publisher: cfg.Publisher,
		Logger:    log,
		Metrics:   cfg.Metrics,
	})

	var presence service.PresenceStore
	if c.Redis != nil {
		presence = service.NewRedisPresenceStore(c.Redis, cfg.Booking.PresenceTTL)
	}
	c.NotificationService = service.NewNotificationService(r.Notifications, r.Users, presence, log, cfg.Metrics)
	c.PermissionResolver = service.NewPermissionResolver(r.Roles)

	// Initialize workers
	c.NotificationWorker = worker.NewNotificationWorker(c.NotificationService, log)
	c.CommissionWorker = worker.NewCommissionWorker(c.CommissionService, c.NotificationService, log)
	c.CommissionSweeper = worker.NewCommissionSweeper(c.CommissionService, log, &worker.CommissionSweeperConfig{
		Interval:  cfg.Booking.SweepInterval,
		BatchSize: cfg.Booking.SweepBatchSize,
	})

	// Initialize handlers
	checks := make(map[string]handler.Pinger, len(cfg.HealthChecks)+2)
	if c.DB != nil {
		checks["postgres"] = c.DB
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	for name, p := range cfg.HealthChecks {
		checks[name] = p
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.TicketRequestHandler = handler.NewTicketRequestHandler(c.TicketRequestService, c.PermissionResolver)
	c.TripHandler = handler.NewTripHandler(c.TripService, c.TicketLedger, c.CommissionService, c.PermissionResolver)
	c.NotificationHandler = handler.NewNotificationHandler(c.NotificationService, c.Redis)

	return c, nil
}

// EventHandlers maps every consumed topic to the worker that handles it
func (c *Container) EventHandlers() map[string]kafka.Handler {
	handlers := make(map[string]kafka.Handler)
	for _, topic := range c.NotificationWorker.Topics() {
		handlers[topic] = c.NotificationWorker.Handle
	}
	for _, topic := range c.CommissionWorker.Topics() {
		handlers[topic] = c.CommissionWorker.Handle
	}
	return handlers
}

func parsePercent(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return service.DefaultAgencyCommissionPercent, nil
	}
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("di: invalid agency commission percent %q: %w", raw, err)
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("di: agency commission percent %q is negative", raw)
	}
	return p, nil
}
