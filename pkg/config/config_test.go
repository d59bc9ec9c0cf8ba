package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	envVars := []string{
		"APP_NAME", "APP_ENVIRONMENT", "APP_DEBUG",
		"SERVER_HOST", "SERVER_PORT",
		"DATABASE_HOST", "DATABASE_PORT", "DATABASE_DBNAME",
		"REDIS_HOST", "REDIS_PORT",
		"KAFKA_BROKERS",
		"JWT_SECRET",
		"BOOKING_AGENCY_COMMISSION_PERCENT", "BOOKING_SWEEP_INTERVAL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "bookingcar" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "bookingcar")
	}

	if cfg.App.Environment != "development" {
		t.Errorf("App.Environment = %q, want %q", cfg.App.Environment, "development")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}

	if cfg.Redis.Port != 6379 {
		t.Errorf("Redis.Port = %d, want %d", cfg.Redis.Port, 6379)
	}

	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v, want [localhost:9092]", cfg.Kafka.Brokers)
	}

	if cfg.Booking.AgencyCommissionPercent != "1.5" {
		t.Errorf("Booking.AgencyCommissionPercent = %q, want %q", cfg.Booking.AgencyCommissionPercent, "1.5")
	}

	if cfg.Booking.SweepInterval != 5*time.Minute {
		t.Errorf("Booking.SweepInterval = %v, want %v", cfg.Booking.SweepInterval, 5*time.Minute)
	}

	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	os.Setenv("APP_NAME", "test-app")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("DATABASE_HOST", "db.example.com")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	defer func() {
		os.Unsetenv("APP_NAME")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("DATABASE_HOST")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-app")
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}

	if cfg.Database.Host != "db.example.com" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.example.com")
	}

	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v, want [k1:9092 k2:9092]", cfg.Kafka.Brokers)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("DSN() = %q, want %q", dsn, expected)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{
		Host: "redis.example.com",
		Port: 6380,
	}

	expected := "redis.example.com:6380"
	if addr := cfg.Addr(); addr != expected {
		t.Errorf("Addr() = %q, want %q", addr, expected)
	}
}

func TestKafkaConfig_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		brokers []string
		want    bool
	}{
		{"nil brokers", nil, false},
		{"blank broker", []string{" "}, false},
		{"one broker", []string{"localhost:9092"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := KafkaConfig{Brokers: tt.brokers}
			if got := cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				App:    AppConfig{Name: "test", Environment: "development"},
				Server: ServerConfig{Port: 8080},
				JWT:    JWTConfig{Secret: "secret"},
			},
			wantErr: false,
		},
		{
			name: "missing app name",
			cfg: Config{
				App:    AppConfig{Name: "", Environment: "development"},
				Server: ServerConfig{Port: 8080},
				JWT:    JWTConfig{Secret: "secret"},
			},
			wantErr: true,
		},
		{
			name: "invalid port",
			cfg: Config{
				App:    AppConfig{Name: "test", Environment: "development"},
				Server: ServerConfig{Port: -1},
				JWT:    JWTConfig{Secret: "secret"},
			},
			wantErr: true,
		},
		{
			name: "missing JWT secret",
			cfg: Config{
				App:    AppConfig{Name: "test", Environment: "development"},
				Server: ServerConfig{Port: 8080},
				JWT:    JWTConfig{Secret: ""},
			},
			wantErr: true,
		},
		{
			name: "default JWT secret in production",
			cfg: Config{
				App:    AppConfig{Name: "test", Environment: "production"},
				Server: ServerConfig{Port: 8080},
				JWT:    JWTConfig{Secret: "your-secret-key-change-in-production"},
			},
			wantErr: true,
		},
		{
			name: "sweep enabled without interval",
			cfg: Config{
				App:     AppConfig{Name: "test", Environment: "development"},
				Server:  ServerConfig{Port: 8080},
				JWT:     JWTConfig{Secret: "secret"},
				Booking: BookingConfig{SweepEnabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateDatabase(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid database",
			cfg:     Config{Database: DatabaseConfig{Host: "localhost", DBName: "bookingcar"}},
			wantErr: false,
		},
		{
			name:    "missing database host",
			cfg:     Config{Database: DatabaseConfig{Host: "", DBName: "bookingcar"}},
			wantErr: true,
		},
		{
			name:    "missing database name",
			cfg:     Config{Database: DatabaseConfig{Host: "localhost", DBName: ""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateDatabase()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDatabase() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("expected production environment")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() || !cfg.IsDevelopment() {
		t.Error("expected development environment")
	}
}
