package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "gmq/pkg/domain-errors"
	strs "gmq/pkg/platform/strings"
)

// Default retention and sizing values for stored records.
const (
	DefaultTransactionTTL = 7257600 * time.Second // three four-week months
	DefaultValidatorTTL   = 15 * time.Minute
	DefaultRecentListSize = 50
	DefaultTimezone       = "America/Puerto_Rico"
)

// RedisConfig configures the shared KV store connection pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RCIConfig configures the remote criminal-record system client.
type RCIConfig struct {
	BaseURL          string
	User             string
	Password         string
	Timeout          time.Duration
	CallbackURL      string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// SMTPConfig configures outbound mail.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// WorkerConfig controls the dispatcher and the pipeline toggles.
type WorkerConfig struct {
	Concurrency       int
	Queues            []string
	PollTimeout       time.Duration
	CertificateDir    string
	ValidationEnabled bool
	RetrieveMode      bool // request+retrieve instead of validate+wait for callback
	CallbackEnabled   bool
	RetryPolicyFile   string
}

// Config is built once at process start and passed to every constructor.
type Config struct {
	Redis          RedisConfig
	RCI            RCIConfig
	SMTP           SMTPConfig
	Worker         WorkerConfig
	OpsAddr        string
	AdminToken     string
	KafkaBrokers   []string
	KafkaTopic     string
	PostgresDSN    string
	LogFormat      string
	LogLevel       string
	Timezone       *time.Location
	TransactionTTL time.Duration
	ValidatorTTL   time.Duration
}

// FromEnv builds a Config from GMQ_* environment variables. Malformed values
// are configuration errors; absent values fall back to defaults.
func FromEnv() (Config, error) {
	e := &envReader{}

	cfg := Config{
		Redis: RedisConfig{
			URL:          e.str("GMQ_REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     e.int("GMQ_REDIS_POOL_SIZE", 20),
			MinIdleConns: e.int("GMQ_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("GMQ_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("GMQ_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("GMQ_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RCI: RCIConfig{
			BaseURL:          strings.TrimRight(e.str("GMQ_RCI_URL", ""), "/"),
			User:             e.str("GMQ_RCI_USER", ""),
			Password:         e.str("GMQ_RCI_PASSWORD", ""),
			Timeout:          e.duration("GMQ_RCI_TIMEOUT", 30*time.Second),
			CallbackURL:      e.str("GMQ_RCI_CALLBACK_URL", ""),
			BreakerThreshold: e.int("GMQ_RCI_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  e.duration("GMQ_RCI_BREAKER_COOLDOWN", time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     e.str("GMQ_SMTP_HOST", ""),
			Port:     e.int("GMQ_SMTP_PORT", 587),
			User:     e.str("GMQ_SMTP_USER", ""),
			Password: e.str("GMQ_SMTP_PASSWORD", ""),
			From:     e.str("GMQ_SMTP_FROM", "noreply@pr.gov"),
		},
		Worker: WorkerConfig{
			Concurrency:       e.int("GMQ_WORKER_CONCURRENCY", 5),
			Queues:            e.list("GMQ_QUEUES", []string{"prgov_cap"}),
			PollTimeout:       e.duration("GMQ_POLL_TIMEOUT", 2*time.Second),
			CertificateDir:    e.str("GMQ_CERTIFICATE_DIR", os.TempDir()),
			ValidationEnabled: e.bool("GMQ_VALIDATION_ENABLED", true),
			RetrieveMode:      e.bool("GMQ_RCI_RETRIEVE_MODE", false),
			CallbackEnabled:   e.bool("GMQ_RCI_CALLBACK_ENABLED", true),
			RetryPolicyFile:   e.str("GMQ_RETRY_POLICY_FILE", ""),
		},
		OpsAddr:        e.str("GMQ_OPS_ADDR", ":9090"),
		AdminToken:     e.str("GMQ_ADMIN_TOKEN", ""),
		KafkaBrokers:   e.list("GMQ_KAFKA_BROKERS", nil),
		KafkaTopic:     e.str("GMQ_KAFKA_TOPIC", "gmq.audit"),
		PostgresDSN:    e.str("GMQ_POSTGRES_DSN", ""),
		LogFormat:      e.str("GMQ_LOG_FORMAT", "json"),
		LogLevel:       e.str("GMQ_LOG_LEVEL", "info"),
		TransactionTTL: e.duration("GMQ_TRANSACTION_TTL", DefaultTransactionTTL),
		ValidatorTTL:   e.duration("GMQ_VALIDATOR_TTL", DefaultValidatorTTL),
	}
	cfg.Timezone = LoadLocation(e.str("GMQ_TIMEZONE", DefaultTimezone))

	if e.err != nil {
		return Config{}, e.err
	}
	if cfg.Worker.Concurrency < 1 {
		return Config{}, invalid("GMQ_WORKER_CONCURRENCY", "must be at least 1")
	}
	if len(cfg.Worker.Queues) == 0 {
		return Config{}, invalid("GMQ_QUEUES", "must name at least one queue")
	}
	return cfg, nil
}

// ValidateWorkers checks the settings the worker pool cannot run without.
func (c Config) ValidateWorkers() error {
	missing := []string{}
	if c.RCI.BaseURL == "" {
		missing = append(missing, "GMQ_RCI_URL")
	}
	if c.SMTP.Host == "" {
		missing = append(missing, "GMQ_SMTP_HOST")
	}
	if c.Worker.RetrieveMode && c.Worker.CallbackEnabled && c.RCI.CallbackURL == "" {
		missing = append(missing, "GMQ_RCI_CALLBACK_URL")
	}
	if len(missing) > 0 {
		err := dErrors.New(dErrors.CodeConfiguration, "missing configuration: "+strings.Join(missing, ", "))
		return err.WithAppCode(dErrors.AppMissingConfiguration)
	}
	return nil
}

// LoadLocation resolves name, falling back to a fixed UTC-4 zone when the
// tz database is unavailable. Puerto Rico does not observe DST.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("AST", -4*60*60)
	}
	return loc
}

func invalid(key, reason string) error {
	err := dErrors.New(dErrors.CodeConfiguration, key+" "+reason)
	return err.WithAppCode(dErrors.AppInvalidConfiguration)
}

// envReader records the first parse failure so FromEnv reads linearly.
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, "must be an integer")
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, "must be a boolean")
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, "must be a duration such as 30s")
		return def
	}
	return d
}

func (e *envReader) list(key string, def []string) []string {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	return strs.DedupeAndTrim(strings.Split(v, ","))
}

func (e *envReader) fail(key, reason string) {
	if e.err == nil {
		e.err = invalid(key, reason)
	}
}
