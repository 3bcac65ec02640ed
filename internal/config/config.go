package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultExpiresMinutes = 60

var (
	ErrMissingSecret = errors.New("JWT_SECRET is required")

	// ErrRegistryProxyLoop rejects serving the revocation service from a
	// process whose own registry is remote.
	ErrRegistryProxyLoop = errors.New("SERVICE_AUTH_TOKEN cannot be set together with REVOCATION_GRPC_ADDR")
)

type Config struct {
	HTTPAddr            string
	GRPCAddr            string
	DatabaseURL         string
	MigrateOnStart      bool
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RevocationGRPCAddr  string
	RevocationGRPCToken string
	ServiceAuthToken    string
	GRPCDialTimeout     time.Duration
	SweepInterval       time.Duration
	RequestTimeout      time.Duration
	JWT                 JWTConfig
	BcryptCost          int
	LoginRatePerSecond  float64
	LoginBurst          int
	TrustProxyHeaders   bool
	AdminUsername       string
	AdminPassword       string
	LogLevel            string
	Environment         string
}

// JWTConfig mirrors the Jwt section recognized by the token issuer and verifier.
type JWTConfig struct {
	Issuer         string
	Audience       string
	Secret         string
	ExpiresMinutes int
}

func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpiresMinutes) * time.Minute
}

func Load() Config {
	return Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:            getenv("GRPC_ADDR", ":9090"),
		DatabaseURL:         getenv("DATABASE_URL", ""),
		MigrateOnStart:      getenvBool("MIGRATE_ON_START", true),
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		RevocationGRPCAddr:  getenv("REVOCATION_GRPC_ADDR", ""),
		RevocationGRPCToken: getenv("REVOCATION_GRPC_TOKEN", ""),
		ServiceAuthToken:    getenv("SERVICE_AUTH_TOKEN", ""),
		GRPCDialTimeout:     getenvDuration("GRPC_DIAL_TIMEOUT", 5*time.Second),
		SweepInterval:       getenvDuration("REVOCATION_SWEEP_INTERVAL", 0),
		RequestTimeout:      getenvDuration("REQUEST_TIMEOUT", 15*time.Second),
		JWT: JWTConfig{
			Issuer:         getenv("JWT_ISSUER", "safescribe-api"),
			Audience:       getenv("JWT_AUDIENCE", "safescribe-clients"),
			Secret:         os.Getenv("JWT_SECRET"),
			ExpiresMinutes: expiresMinutes(os.Getenv("JWT_EXPIRES_MINUTES")),
		},
		BcryptCost:         getenvInt("BCRYPT_COST", 10),
		LoginRatePerSecond: getenvFloat("LOGIN_RATE_PER_SECOND", 5),
		LoginBurst:         getenvInt("LOGIN_BURST", 10),
		TrustProxyHeaders:  getenvBool("TRUST_PROXY_HEADERS", false),
		AdminUsername:      getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getenv("ADMIN_PASSWORD", ""),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		Environment:        getenv("APP_ENV", "development"),
	}
}

// Validate reports configuration that must stop the process before it serves traffic.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingSecret
	}
	if c.RevocationGRPCAddr != "" && c.ServiceAuthToken != "" {
		return ErrRegistryProxyLoop
	}
	return nil
}

func expiresMinutes(raw string) int {
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || minutes <= 0 {
		return defaultExpiresMinutes
	}
	return minutes
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
