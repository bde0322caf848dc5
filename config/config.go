package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	QR         QRConfig         `yaml:"qr"`
	Dispense   DispenseConfig   `yaml:"dispense"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// AuthConfig holds the bearer-token verification settings. Tokens are issued
// by the hosted identity provider; this service only verifies them.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	Issuer      string `yaml:"issuer"`
	SignInURL   string `yaml:"sign_in_url"`
	ReturnParam string `yaml:"return_param"`
}

// QRConfig holds the kiosk QR signature settings. Kiosks are provisioned
// with the shared secret out of band.
type QRConfig struct {
	KioskSecret      string        `yaml:"kiosk_secret"`
	FreshnessSeconds int           `yaml:"freshness_seconds"`
	FreshnessWindow  time.Duration `yaml:"-"` // Ignored by YAML parser
}

// DispenseConfig holds pricing and quantity limits for dispense requests.
type DispenseConfig struct {
	PricePerLiterCents    int64     `yaml:"price_per_liter_cents"`
	AllowedLiters         []float64 `yaml:"allowed_liters"`
	DefaultFlowRateLpm    float64   `yaml:"default_flow_rate_lpm"`
	IdempotencyTTLSeconds int       `yaml:"idempotency_ttl_seconds"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the receipt worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.QR.FreshnessSeconds <= 0 {
		cfg.QR.FreshnessSeconds = 600
	}
	cfg.QR.FreshnessWindow = time.Duration(cfg.QR.FreshnessSeconds) * time.Second

	if cfg.Dispense.PricePerLiterCents <= 0 {
		cfg.Dispense.PricePerLiterCents = 175
	}
	if len(cfg.Dispense.AllowedLiters) == 0 {
		cfg.Dispense.AllowedLiters = []float64{1, 5, 10, 20}
	}
	if cfg.Dispense.DefaultFlowRateLpm <= 0 {
		cfg.Dispense.DefaultFlowRateLpm = 8
	}
	if cfg.Dispense.IdempotencyTTLSeconds <= 0 {
		cfg.Dispense.IdempotencyTTLSeconds = 600
	}

	if cfg.Auth.ReturnParam == "" {
		cfg.Auth.ReturnParam = "return_to"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
