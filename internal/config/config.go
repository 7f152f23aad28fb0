package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/dvloznov/payment-snap/internal/llm"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendBigQuery = "bigquery"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Port is the HTTP listen port.
	// Environment variable: PORT
	Port int `koanf:"PORT"`

	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`

	// APIToken enables bearer auth on /api routes when set.
	// Environment variable: API_TOKEN
	APIToken string `koanf:"API_TOKEN"`

	Inference InferenceConfig `koanf:",squash"`

	// StoreBackend selects the record store: "postgres" or "bigquery".
	// Environment variable: STORE_BACKEND
	StoreBackend string `koanf:"STORE_BACKEND"`

	BigQuery BigQueryConfig `koanf:",squash"`
	Postgres PostgresConfig `koanf:",squash"`
	Blobs    BlobConfig     `koanf:",squash"`
	AMQP     AMQPConfig     `koanf:",squash"`
}

// InferenceConfig configures the Gemini models.
type InferenceConfig struct {
	// APIKey is the provider credential. Empty disables AI categorization
	// and makes every screenshot extraction fail.
	APIKey string `koanf:"GEMINI_API_KEY"`

	VisionModel string        `koanf:"VISION_MODEL"`
	TextModel   string        `koanf:"TEXT_MODEL"`
	Timeout     time.Duration `koanf:"INFERENCE_TIMEOUT"`
}

// BigQueryConfig holds the BigQuery record store location.
type BigQueryConfig struct {
	Project string `koanf:"BIGQUERY_PROJECT"`
	Dataset string `koanf:"BIGQUERY_DATASET"`
	Table   string `koanf:"BIGQUERY_TABLE"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
	MaxConns int32  `koanf:"POSTGRES_MAX_CONNS"`
}

// BlobConfig configures screenshot storage in GCS.
type BlobConfig struct {
	// Bucket is the GCS bucket. Empty disables attachments.
	Bucket       string        `koanf:"GCS_BUCKET"`
	SignedURLTTL time.Duration `koanf:"SIGNED_URL_TTL"`
	PublicURLs   bool          `koanf:"PUBLIC_ATTACHMENT_URLS"`
}

// AMQPConfig configures transaction event publishing.
type AMQPConfig struct {
	// URL is the broker URL. Empty disables publishing.
	URL      string `koanf:"AMQP_URL"`
	Exchange string `koanf:"AMQP_EXCHANGE"`
	Queue    string `koanf:"AMQP_QUEUE"`
}

// Load reads an optional dotenv file and then the process environment.
// Variables already set in the environment win over the file. An empty
// envFile means ".env"; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: reading %s: %w", envFile, err)
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("config.Load: loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Inference.VisionModel == "" {
		c.Inference.VisionModel = llm.DefaultModelName
	}
	if c.Inference.TextModel == "" {
		c.Inference.TextModel = llm.DefaultModelName
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 30 * time.Second
	}
	if c.StoreBackend == "" {
		c.StoreBackend = BackendPostgres
	}
	c.StoreBackend = strings.ToLower(c.StoreBackend)
	if c.BigQuery.Dataset == "" {
		c.BigQuery.Dataset = "finance"
	}
	if c.BigQuery.Table == "" {
		c.BigQuery.Table = "payment_transactions"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Blobs.SignedURLTTL == 0 {
		c.Blobs.SignedURLTTL = time.Hour
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "payment-snap"
	}
	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "transactions.created"
	}
}

// Validate returns every configuration problem joined into one error.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.Inference.Timeout < 0 {
		problems = append(problems, "INFERENCE_TIMEOUT must be positive")
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.Postgres.Host == "" {
			problems = append(problems, "POSTGRES_HOST is required for the postgres backend")
		}
		if c.Postgres.Database == "" {
			problems = append(problems, "POSTGRES_DB is required for the postgres backend")
		}
		if c.Postgres.MaxConns < 1 {
			problems = append(problems, "POSTGRES_MAX_CONNS must be at least 1")
		}
	case BackendBigQuery:
		if c.BigQuery.Project == "" {
			problems = append(problems, "BIGQUERY_PROJECT is required for the bigquery backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid store backend %q: must be %q or %q", c.StoreBackend, BackendPostgres, BackendBigQuery))
	}

	if c.Blobs.SignedURLTTL <= 0 || c.Blobs.SignedURLTTL > 7*24*time.Hour {
		problems = append(problems, "SIGNED_URL_TTL must be between 0 and 7 days")
	}

	if c.AMQP.URL != "" {
		if u, err := url.Parse(c.AMQP.URL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DSN returns a libpq style connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}
