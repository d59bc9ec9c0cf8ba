package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/di"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/handler"
	"github.com/bamanh2802/bookingcar/backend-booking/internal/service"
	"github.com/bamanh2802/bookingcar/pkg/config"
	"github.com/bamanh2802/bookingcar/pkg/database"
	"github.com/bamanh2802/bookingcar/pkg/kafka"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/bamanh2802/bookingcar/pkg/middleware"
	"github.com/bamanh2802/bookingcar/pkg/redis"
	"github.com/bamanh2802/bookingcar/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "booking service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   2 * time.Second,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to postgres", zap.String("host", cfg.Database.Host))

	// Redis only backs presence and live push, the booking path runs without it
	rdb, err := redis.NewClient(ctx, &redis.Config{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Warn("redis unavailable, presence and live notifications disabled", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	var (
		publisher    service.EventPublisher
		asyncPub     *service.AsyncEventPublisher
		producer     *kafka.Producer
		healthChecks = map[string]handler.Pinger{}
	)
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewProducer(&kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = service.NewKafkaEventPublisher(producer)
		healthChecks["kafka"] = producer
	} else {
		asyncPub = service.NewAsyncEventPublisher(log)
		publisher = asyncPub
		log.Info("kafka not configured, dispatching events in process")
	}

	container, err := di.NewContainer(&di.ContainerConfig{
		DB:           db,
		Redis:        rdb,
		Publisher:    publisher,
		Booking:      cfg.Booking,
		Logger:       log,
		Metrics:      service.NewMetrics(),
		HealthChecks: healthChecks,
	})
	if err != nil {
		return err
	}

	handlers := container.EventHandlers()
	if asyncPub != nil {
		for topic, h := range handlers {
			asyncPub.Subscribe(topic, h)
		}
		defer asyncPub.Close()
	} else {
		if err := startConsumer(ctx, cfg, handlers, log); err != nil {
			return err
		}
	}

	if cfg.Booking.SweepEnabled {
		if err := container.CommissionSweeper.Start(ctx); err != nil {
			return fmt.Errorf("start commission sweeper: %w", err)
		}
		defer func() { _ = container.CommissionSweeper.Stop() }()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewKeyedRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.Booking.RateLimitPerSecond,
		BurstSize:         cfg.Booking.RateLimitBurst,
	})
	defer limiter.Stop()

	routerCfg := &handler.RouterConfig{
		Health:         container.HealthHandler,
		TicketRequests: container.TicketRequestHandler,
		Trips:          container.TripHandler,
		Notifications:  container.NotificationHandler,
		Auth: middleware.JWTMiddleware(&middleware.JWTConfig{
			Secret:    cfg.JWT.Secret,
			Issuer:    cfg.JWT.Issuer,
			SkipPaths: []string{"/health", "/ready"},
		}),
		Permissions: container.PermissionResolver,
		CORS:        middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)),
		RateLimit:   middleware.RateLimit(limiter),
	}
	if cfg.Booking.AuditEnabled {
		auditCfg := middleware.DefaultAuditConfig(middleware.NewPostgresAuditSink(db.Pool()))
		auditCfg.Logger = log.Named("audit")
		auditLogger := middleware.NewAuditLogger(auditCfg)
		defer auditLogger.Close()
		routerCfg.Audit = middleware.AuditMiddleware(auditLogger)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("booking service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	log.Info("booking service stopped")
	return nil
}

// startConsumer joins the booking consumer group and routes records by topic
func startConsumer(ctx context.Context, cfg *config.Config, handlers map[string]kafka.Handler, log *logger.Logger) error {
	topics := make([]string, 0, len(handlers))
	for topic := range handlers {
		topics = append(topics, topic)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.ConsumerGroup,
		ClientID: cfg.Kafka.ClientID,
		Topics:   topics,
	}, log.Named("consumer"))
	if err != nil {
		return err
	}

	go func() {
		defer consumer.Close()
		err := consumer.Run(ctx, func(ctx context.Context, msg *kafka.Message) error {
			h, ok := handlers[msg.Topic]
			if !ok {
				return nil
			}
			return h(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("kafka consumer stopped", zap.Error(err))
		}
	}()
	return nil
}
