package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Env            string         `yaml:"env"`
	Addr           string         `yaml:"addr"`
	JWTSecret      string         `yaml:"jwt_secret"`
	APITimeout     time.Duration  `yaml:"timeout"`
	TokenDuration  time.Duration  `yaml:"token_duration"`
	MigrateOnStart bool           `yaml:"migrate_on_start"`
	PublicURL      string         `yaml:"public_url"`
	AdminEmails    []string       `yaml:"admin_emails"`
	CORSOrigins    []string       `yaml:"cors_origins"`
	Database       DatabaseConfig `yaml:"database"`
	Redis          RedisConfig    `yaml:"redis"`
	Stripe         StripeConfig   `yaml:"stripe"`
	Storage        StorageConfig  `yaml:"storage"`
	Broker         BrokerConfig   `yaml:"broker"`
	Jobs           JobsConfig     `yaml:"jobs"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig backs token revocation. An empty Addr keeps revocations in
// process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StripeConfig struct {
	SecretKey      string        `yaml:"secret_key"`
	WebhookSecret  string        `yaml:"webhook_secret"`
	ProductName    string        `yaml:"product_name"`
	Currency       string        `yaml:"currency"`
	UnitAmount     int64         `yaml:"unit_amount"` // cents per month
	TrialDays      int64         `yaml:"trial_days"`
	PaymentMethods []string      `yaml:"payment_methods"`
	Timeout        time.Duration `yaml:"timeout"`
}

// StorageConfig points at an S3 compatible bucket (MinIO, S3, R2).
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
	MaxPhotoBytes int64  `yaml:"max_photo_bytes"`
}

// BrokerConfig configures the notification publisher. An empty URL logs
// notifications instead of publishing them.
type BrokerConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type JobsConfig struct {
	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig builds the configuration from environment defaults and, when
// path is set, overlays the YAML file on top.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Env:            getEnv("NANNYGO_ENV", "production"),
		Addr:           getEnv("NANNYGO_ADDR", ":8080"),
		JWTSecret:      getEnv("NANNYGO_JWT_SECRET", insecureJWTSecret),
		APITimeout:     15 * time.Second,
		TokenDuration:  24 * time.Hour,
		MigrateOnStart: getEnvBool("NANNYGO_MIGRATE_ON_START", true),
		PublicURL:      getEnv("NANNYGO_PUBLIC_URL", "http://localhost:5173"),
		AdminEmails:    splitList(os.Getenv("NANNYGO_ADMIN_EMAILS")),
		CORSOrigins:    splitList(getEnv("NANNYGO_CORS_ORIGINS", "*")),
		Database: DatabaseConfig{
			Driver: getEnv("NANNYGO_DB_DRIVER", "sqlite"),
			DSN:    getEnv("NANNYGO_DB_DSN", "nannygo.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("NANNYGO_REDIS_ADDR"),
			Password: os.Getenv("NANNYGO_REDIS_PASSWORD"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("NANNYGO_STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("NANNYGO_STRIPE_WEBHOOK_SECRET"),
		},
		Storage: StorageConfig{
			Endpoint:      os.Getenv("NANNYGO_STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("NANNYGO_STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("NANNYGO_STORAGE_SECRET_KEY"),
			Bucket:        getEnv("NANNYGO_STORAGE_BUCKET", "avatars"),
			UseSSL:        getEnvBool("NANNYGO_STORAGE_USE_SSL", true),
			PublicBaseURL: os.Getenv("NANNYGO_STORAGE_PUBLIC_URL"),
		},
		Broker: BrokerConfig{
			URL: os.Getenv("NANNYGO_AMQP_URL"),
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required fields and fills defaults for optional sections.
// The default JWT secret is only accepted in development.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.APITimeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.TokenDuration <= 0 {
		return errors.New("token_duration must be positive")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && !c.IsDevelopment() {
		return errors.New("insecure jwt_secret is only allowed in development")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	if c.Stripe.ProductName == "" {
		c.Stripe.ProductName = "NannyGo Premium"
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "eur"
	}
	if c.Stripe.UnitAmount <= 0 {
		c.Stripe.UnitAmount = 995
	}
	if c.Stripe.TrialDays <= 0 {
		c.Stripe.TrialDays = 60
	}
	if len(c.Stripe.PaymentMethods) == 0 {
		c.Stripe.PaymentMethods = []string{"card", "ideal"}
	}
	if c.Stripe.Timeout <= 0 {
		c.Stripe.Timeout = 10 * time.Second
	}
	if c.Storage.MaxPhotoBytes <= 0 {
		c.Storage.MaxPhotoBytes = 5 << 20
	}
	if c.Broker.Queue == "" {
		c.Broker.Queue = "nannygo.notifications"
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
