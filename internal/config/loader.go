package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "devteam.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DEVTEAM_PORT")
	setString(&cfg.Server.CORSOrigin, "DEVTEAM_CORS_ORIGIN")
	setInt64(&cfg.Server.MaxBodyBytes, "DEVTEAM_MAX_BODY_BYTES")
	setFloat64(&cfg.Server.ChatRPS, "DEVTEAM_CHAT_RPS")
	setInt(&cfg.Server.ChatBurst, "DEVTEAM_CHAT_BURST")
	setDuration(&cfg.Server.IdempotencyTTL, "DEVTEAM_IDEMPOTENCY_TTL")
	setString(&cfg.Storage.Driver, "DEVTEAM_STORAGE_DRIVER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DEVTEAM_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DEVTEAM_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DEVTEAM_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DEVTEAM_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DEVTEAM_PG_HEALTH_CHECK")
	setBool(&cfg.NATS.Enabled, "DEVTEAM_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setDuration(&cfg.LiteLLM.ChatTimeout, "DEVTEAM_LITELLM_CHAT_TIMEOUT")
	setString(&cfg.Logging.Level, "DEVTEAM_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DEVTEAM_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DEVTEAM_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "DEVTEAM_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DEVTEAM_BREAKER_TIMEOUT")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "DEVTEAM_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "DEVTEAM_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "DEVTEAM_CACHE_L2_TTL")
	setDuration(&cfg.Cache.ModelsTTL, "DEVTEAM_CACHE_MODELS_TTL")

	// Approval
	setDuration(&cfg.Approval.SweepInterval, "DEVTEAM_SWEEP_INTERVAL")
	setDuration(&cfg.Approval.EscalationExtension, "DEVTEAM_ESCALATION_EXTENSION")
	setInt(&cfg.Approval.DefaultMaxIterations, "DEVTEAM_MAX_ITERATIONS")
	setString(&cfg.Approval.ActionBaseURL, "DEVTEAM_ACTION_BASE_URL")

	// Notification
	setInt(&cfg.Notification.MaxAttempts, "DEVTEAM_NOTIFY_MAX_ATTEMPTS")
	setInt(&cfg.Notification.EscalationMaxAttempts, "DEVTEAM_NOTIFY_ESCALATION_MAX_ATTEMPTS")
	setDuration(&cfg.Notification.RetryDelay, "DEVTEAM_NOTIFY_RETRY_DELAY")
	setDuration(&cfg.Notification.WebhookTimeout, "DEVTEAM_NOTIFY_WEBHOOK_TIMEOUT")
	setString(&cfg.Notification.SlackWebhookURL, "DEVTEAM_SLACK_WEBHOOK_URL")
	setString(&cfg.Notification.SMTP.Host, "DEVTEAM_SMTP_HOST")
	setInt(&cfg.Notification.SMTP.Port, "DEVTEAM_SMTP_PORT")
	setString(&cfg.Notification.SMTP.From, "DEVTEAM_SMTP_FROM")
	setString(&cfg.Notification.SMTP.Password, "DEVTEAM_SMTP_PASSWORD")

	// Router
	setString(&cfg.Router.DefaultProvider, "DEVTEAM_ROUTER_DEFAULT_PROVIDER")
	setString(&cfg.Router.DefaultModel, "DEVTEAM_ROUTER_DEFAULT_MODEL")
	setInt(&cfg.Router.MaxAttempts, "DEVTEAM_ROUTER_MAX_ATTEMPTS")

	// Assignments
	setString(&cfg.Assignments.File, "DEVTEAM_ASSIGNMENTS_FILE")
	setBool(&cfg.Assignments.Watch, "DEVTEAM_ASSIGNMENTS_WATCH")

	// OpenTelemetry
	setBool(&cfg.OTel.Enabled, "DEVTEAM_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTel.ServiceName, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Driver {
	case "memory":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or postgres, got %q", cfg.Storage.Driver)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Server.ChatRPS <= 0 || cfg.Server.ChatBurst < 1 {
		return errors.New("server.chat_rps and server.chat_burst must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Approval.SweepInterval <= 0 {
		return errors.New("approval.sweep_interval must be positive")
	}
	if cfg.Notification.MaxAttempts < 1 {
		return errors.New("notification.max_attempts must be >= 1")
	}
	if cfg.Notification.RetryDelay <= 0 {
		return errors.New("notification.retry_delay must be positive")
	}
	if cfg.Router.MaxAttempts < 2 {
		return errors.New("router.max_attempts must be >= 2")
	}
	if cfg.Router.DefaultProvider == "" || cfg.Router.DefaultModel == "" {
		return errors.New("router.default_provider and router.default_model are required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
