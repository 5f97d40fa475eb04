// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// AllowedOrigins gates the streaming endpoint by Origin/Referer prefix.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables redis-backed features
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	CookieName string `yaml:"cookie_name"`
}

type PaymentConfig struct {
	// RedirectHost is the frontend origin used for the default return URL.
	RedirectHost string `yaml:"redirect_host"`
	// WebhookAllowedCIDRs restricts who may call the webhook; empty allows everyone.
	WebhookAllowedCIDRs []string `yaml:"webhook_allowed_cidrs"`
	YooKassa            struct {
		ShopID    string        `yaml:"shop_id"`
		SecretKey string        `yaml:"secret_key"`
		APIURL    string        `yaml:"api_url"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"yookassa"`
}

type StreamingConfig struct {
	TokenTTL      time.Duration `yaml:"token_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	UploadsDir    string        `yaml:"uploads_dir"`
	IssueLimit    int           `yaml:"issue_limit"`  // tokens per user per window
	IssueWindow   time.Duration `yaml:"issue_window"` // rate limit window
}

type SchedulerConfig struct {
	ExpiryCheckCron   string        `yaml:"expiry_check_cron"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // empty disables event publishing
	Topic   string   `yaml:"topic"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Streaming StreamingConfig `yaml:"streaming"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Kafka     KafkaConfig     `yaml:"kafka"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file system.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "token"
	}
	if cfg.Payment.RedirectHost == "" {
		cfg.Payment.RedirectHost = "http://localhost:5173"
	}
	cfg.Payment.RedirectHost = strings.TrimRight(cfg.Payment.RedirectHost, "/")
	if cfg.Payment.YooKassa.APIURL == "" {
		cfg.Payment.YooKassa.APIURL = "https://api.yookassa.ru/v3"
	}
	if cfg.Payment.YooKassa.Timeout <= 0 {
		cfg.Payment.YooKassa.Timeout = 15 * time.Second
	}
	if cfg.Streaming.TokenTTL <= 0 {
		cfg.Streaming.TokenTTL = 2 * time.Hour
	}
	if cfg.Streaming.SweepInterval <= 0 {
		cfg.Streaming.SweepInterval = 30 * time.Minute
	}
	if cfg.Streaming.UploadsDir == "" {
		cfg.Streaming.UploadsDir = "uploads"
	}
	if cfg.Streaming.IssueLimit <= 0 {
		cfg.Streaming.IssueLimit = 30
	}
	if cfg.Streaming.IssueWindow <= 0 {
		cfg.Streaming.IssueWindow = time.Minute
	}
	if cfg.Scheduler.ExpiryCheckCron == "" {
		cfg.Scheduler.ExpiryCheckCron = "1 0 * * *"
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 15 * time.Minute
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "entitlements"
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if !cfg.Runtime.Dev && (cfg.Payment.YooKassa.ShopID == "" || cfg.Payment.YooKassa.SecretKey == "") {
		return errors.New("payment.yookassa.shop_id and secret_key are required outside dev mode")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
