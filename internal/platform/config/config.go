package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "voteverse"

const (
	StorageKV  = "kv"
	StorageSQL = "sql"

	KVBadger = "badger"
	KVMemory = "memory"

	SQLSQLite   = "sqlite"
	SQLPostgres = "postgres"
)

type ctxKey string

const configContextKey ctxKey = "voteverse.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

// FromContext returns the config stored by WithContext, or defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configContextKey).(*Config); ok && cfg != nil {
		return cfg
	}
	cfg := Default()
	return &cfg
}

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string        `yaml:"serviceName" toml:"serviceName" split_words:"true"`
	HTTPAddr    string        `yaml:"httpAddr"    toml:"httpAddr"    envconfig:"HTTP_ADDR"`
	Debug       bool          `yaml:"debug"       toml:"debug"`
	Storage     StorageConfig `yaml:"storage"     toml:"storage"`
	Session     SessionConfig `yaml:"session"     toml:"session"`
	Relay       RelayConfig   `yaml:"relay"       toml:"relay"`
	Metrics     MetricsConfig `yaml:"metrics"     toml:"metrics"`
	Seed        SeedConfig    `yaml:"seed"        toml:"seed"        ignored:"true"`
}

type StorageConfig struct {
	// Backend selects the election store: kv mirrors state into the key/value
	// backend, sql uses relational tables.
	Backend    string `yaml:"backend"    toml:"backend"`
	KVBackend  string `yaml:"kvBackend"  toml:"kvBackend"  envconfig:"KV_BACKEND"`
	DataDir    string `yaml:"dataDir"    toml:"dataDir"    split_words:"true"`
	SQLDialect string `yaml:"sqlDialect" toml:"sqlDialect" envconfig:"SQL_DIALECT"`
	SQLDSN     string `yaml:"sqlDsn"     toml:"sqlDsn"     envconfig:"SQL_DSN"`
}

type SessionConfig struct {
	VerificationCode string        `yaml:"verificationCode" toml:"verificationCode" split_words:"true"`
	VerificationTTL  time.Duration `yaml:"verificationTtl"  toml:"verificationTtl"  envconfig:"VERIFICATION_TTL"`
	AdminUsername    string        `yaml:"adminUsername"    toml:"adminUsername"    split_words:"true"`
	AdminPassword    string        `yaml:"adminPassword"    toml:"adminPassword"    split_words:"true"`
}

type RelayConfig struct {
	InProcess    bool          `yaml:"inProcess"    toml:"inProcess"    split_words:"true"`
	PollInterval time.Duration `yaml:"pollInterval" toml:"pollInterval" split_words:"true"`
	BatchSize    int           `yaml:"batchSize"    toml:"batchSize"    split_words:"true"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

type SeedConfig struct {
	Districts  []string        `yaml:"districts"  toml:"districts"`
	Voters     []SeedVoter     `yaml:"voters"     toml:"voters"`
	Candidates []SeedCandidate `yaml:"candidates" toml:"candidates"`
}

type SeedVoter struct {
	ID       string `yaml:"id"       toml:"id"`
	Phone    string `yaml:"phone"    toml:"phone"`
	Name     string `yaml:"name"     toml:"name"`
	District string `yaml:"district" toml:"district"`
	HasVoted bool   `yaml:"hasVoted" toml:"hasVoted"`
}

type SeedCandidate struct {
	ID       string `yaml:"id"       toml:"id"`
	Name     string `yaml:"name"     toml:"name"`
	District string `yaml:"district" toml:"district"`
	Image    string `yaml:"image"    toml:"image"`
}

func Default() Config {
	return Config{
		ServiceName: "voteverse",
		HTTPAddr:    ":8080",
		Storage: StorageConfig{
			Backend:    StorageKV,
			KVBackend:  KVMemory,
			SQLDialect: SQLSQLite,
		},
		Session: SessionConfig{
			VerificationCode: "1234",
			AdminUsername:    "admin",
			AdminPassword:    "admin123",
		},
		Relay: RelayConfig{
			InProcess:    true,
			PollInterval: 2 * time.Second,
			BatchSize:    100,
		},
		Metrics: MetricsConfig{Enabled: true},
		Seed:    DefaultSeed(),
	}
}

// DefaultSeed is the demo election: four districts with four candidates
// each and one registered voter per district.
func DefaultSeed() SeedConfig {
	return SeedConfig{
		Districts: []string{"North", "South", "East", "West"},
		Voters: []SeedVoter{
			{ID: "1001", Phone: "9876543210", Name: "John Doe", District: "North"},
			{ID: "1002", Phone: "9876543211", Name: "Jane Smith", District: "South"},
			{ID: "1003", Phone: "9876543212", Name: "Alice Johnson", District: "East", HasVoted: true},
			{ID: "1004", Phone: "9876543213", Name: "Bob Williams", District: "West"},
		},
		Candidates: []SeedCandidate{
			{ID: "101", Name: "Alexander Mitchell", District: "North"},
			{ID: "102", Name: "Isabella Roberts", District: "North"},
			{ID: "103", Name: "William Harrison", District: "North"},
			{ID: "104", Name: "Olivia Thompson", District: "North"},
			{ID: "201", Name: "Sophia Martinez", District: "South"},
			{ID: "202", Name: "Benjamin Carter", District: "South"},
			{ID: "203", Name: "Charlotte Wilson", District: "South"},
			{ID: "204", Name: "Daniel Anderson", District: "South"},
			{ID: "301", Name: "Emily Johnson", District: "East"},
			{ID: "302", Name: "James Williams", District: "East"},
			{ID: "303", Name: "Amelia Brown", District: "East"},
			{ID: "304", Name: "Michael Jones", District: "East"},
			{ID: "401", Name: "Ava Davis", District: "West"},
			{ID: "402", Name: "Ethan Miller", District: "West"},
			{ID: "403", Name: "Mia Wilson", District: "West"},
			{ID: "404", Name: "Jacob Taylor", District: "West"},
		},
	}
}

// Load builds the config from defaults, a .env file in the working
// directory, the optional config file and VOTEVERSE_* environment variables,
// in that order.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("error loading .env: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	if configFile != "" {
		if err := loadFile(configFile, &cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(buf, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.KVBackend = strings.ToLower(strings.TrimSpace(c.Storage.KVBackend))
	c.Storage.SQLDialect = strings.ToLower(strings.TrimSpace(c.Storage.SQLDialect))

	switch c.Storage.Backend {
	case StorageKV, StorageSQL:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.KVBackend {
	case KVBadger, KVMemory:
	default:
		return fmt.Errorf("unknown kv backend %q", c.Storage.KVBackend)
	}
	switch c.Storage.SQLDialect {
	case SQLSQLite:
	case SQLPostgres:
		if c.Storage.Backend == StorageSQL && strings.TrimSpace(c.Storage.SQLDSN) == "" {
			return errors.New("postgres dialect requires storage.sqlDsn")
		}
	default:
		return fmt.Errorf("unknown sql dialect %q", c.Storage.SQLDialect)
	}
	if strings.TrimSpace(c.Session.VerificationCode) == "" {
		return errors.New("session.verificationCode must not be empty")
	}
	if c.Session.VerificationTTL < 0 {
		return errors.New("session.verificationTtl must not be negative")
	}
	if c.Relay.PollInterval <= 0 {
		return errors.New("relay.pollInterval must be positive")
	}
	if c.Relay.BatchSize <= 0 {
		return errors.New("relay.batchSize must be positive")
	}
	return nil
}
