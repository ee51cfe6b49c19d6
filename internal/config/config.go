// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Uyoxy/NexaFx-backend/pkg/db"
)

// StellarConfig holds settlement network configuration.
type StellarConfig struct {
	HorizonURL        string
	NetworkPassphrase string
	SecretSeed        string // hex-encoded ed25519 seed of the custodial account
	RequestTimeout    time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config
	Stellar    StellarConfig
	NATSURL    string // Empty disables outcome event publishing
}

// LoadConfig loads configuration from the environment, reading a local .env
// file first when present.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load() // Best effort; real deployments set env vars directly

	dbPort, err := strconv.Atoi(envOrDefault("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	secretSeed := os.Getenv("STELLAR_SECRET_SEED")
	if secretSeed == "" {
		return nil, fmt.Errorf("STELLAR_SECRET_SEED is not set")
	}

	maxRetries, err := strconv.Atoi(envOrDefault("STELLAR_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid STELLAR_MAX_RETRIES: %w", err)
	}
	requestTimeout, err := time.ParseDuration(envOrDefault("STELLAR_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STELLAR_REQUEST_TIMEOUT: %w", err)
	}
	retryBackoff, err := time.ParseDuration(envOrDefault("STELLAR_RETRY_BACKOFF", "200ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid STELLAR_RETRY_BACKOFF: %w", err)
	}

	return &AppConfig{
		ServerPort: envOrDefault("SERVER_PORT", "8080"),
		DB: db.Config{
			Host:     envOrDefault("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     envOrDefault("DB_USER", "nexafx"),
			Password: envOrDefault("DB_PASSWORD", "nexafx"),
			DBName:   envOrDefault("DB_NAME", "nexafx"),
			SSLMode:  envOrDefault("DB_SSLMODE", "disable"),
		},
		Stellar: StellarConfig{
			HorizonURL:        envOrDefault("STELLAR_HORIZON_URL", "https://horizon-testnet.stellar.org"),
			NetworkPassphrase: envOrDefault("STELLAR_NETWORK_PASSPHRASE", "Test SDF Network ; September 2015"),
			SecretSeed:        secretSeed,
			RequestTimeout:    requestTimeout,
			MaxRetries:        maxRetries,
			RetryBackoff:      retryBackoff,
		},
		NATSURL: os.Getenv("NATS_URL"),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
