package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// StorageMode selects the persistence wiring: "memory" for the
	// self-contained runtime, "postgres" for the durable one.
	StorageMode string

	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string

	KafkaBrokers       []string
	TopicEscrowEvents  string
	TopicPaymentEvents string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	LedgerMinimumBalance int64
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Storage struct {
		Mode        string `yaml:"mode"`
		DatabaseURL string `yaml:"database_url"`
		MaxDBConns  int32  `yaml:"max_db_conns"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"storage"`
	Events struct {
		KafkaBrokers       []string `yaml:"kafka_brokers"`
		TopicEscrowEvents  string   `yaml:"topic_escrow_events"`
		TopicPaymentEvents string   `yaml:"topic_payment_events"`
		OutboxPollSeconds  int      `yaml:"outbox_poll_seconds"`
		OutboxBatchSize    int      `yaml:"outbox_batch_size"`
	} `yaml:"events"`
	Ledger struct {
		MinimumBalance int64 `yaml:"minimum_balance"`
	} `yaml:"ledger"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "M15-Settlement-Core-Service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		StorageMode:          "memory",
		MaxDBConns:           16,
		TopicEscrowEvents:    "escrow.events",
		TopicPaymentEvents:   "payment.events",
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		LedgerMinimumBalance: 1,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Storage.Mode != "" {
			cfg.StorageMode = f.Storage.Mode
		}
		if f.Storage.DatabaseURL != "" {
			cfg.DatabaseURL = f.Storage.DatabaseURL
		}
		if f.Storage.MaxDBConns > 0 {
			cfg.MaxDBConns = f.Storage.MaxDBConns
		}
		if f.Storage.RedisURL != "" {
			cfg.RedisURL = f.Storage.RedisURL
		}
		if len(f.Events.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Events.KafkaBrokers)
		}
		if f.Events.TopicEscrowEvents != "" {
			cfg.TopicEscrowEvents = f.Events.TopicEscrowEvents
		}
		if f.Events.TopicPaymentEvents != "" {
			cfg.TopicPaymentEvents = f.Events.TopicPaymentEvents
		}
		if f.Events.OutboxPollSeconds > 0 {
			cfg.OutboxPollInterval = time.Duration(f.Events.OutboxPollSeconds) * time.Second
		}
		if f.Events.OutboxBatchSize > 0 {
			cfg.OutboxBatchSize = f.Events.OutboxBatchSize
		}
		if f.Ledger.MinimumBalance > 0 {
			cfg.LedgerMinimumBalance = f.Ledger.MinimumBalance
		}
	}

	cfg.StorageMode = envOrDefault("STORAGE_MODE", cfg.StorageMode)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.TopicEscrowEvents = envOrDefault("KAFKA_TOPIC_ESCROW_EVENTS", cfg.TopicEscrowEvents)
	cfg.TopicPaymentEvents = envOrDefault("KAFKA_TOPIC_PAYMENT_EVENTS", cfg.TopicPaymentEvents)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)

	if cfg.StorageMode != "memory" && cfg.StorageMode != "postgres" {
		return Config{}, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
	if cfg.StorageMode == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("postgres storage mode requires DATABASE_URL")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
