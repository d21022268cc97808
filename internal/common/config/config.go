package config

import "fmt"

type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Camunda       CamundaConfig      `mapstructure:"camunda"`
	Database      DatabaseConfig     `mapstructure:"database"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Cascade       CascadeConfig      `mapstructure:"cascade"`
	Tiering       TieringConfig      `mapstructure:"tiering"`
	Accumulator   AccumulatorConfig  `mapstructure:"accumulator"`
	Session       SessionConfig      `mapstructure:"session"`
	Business      BusinessConfig     `mapstructure:"business"`
	Integrations  IntegrationConfig  `mapstructure:"integrations"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	TurnTimeout int `mapstructure:"turn_timeout_ms"`
}

type CamundaConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	BrokerAddress        string `mapstructure:"broker_address"`
	RequestTimeout       int    `mapstructure:"request_timeout"` // milliseconds
	OrderProcessID       string `mapstructure:"order_process_id"`
	ReservationProcessID string `mapstructure:"reservation_process_id"`
	// ConfirmationWorker, when enabled, moves caller and owner notices out of
	// the commit pipeline and into the send-confirmation service task.
	ConfirmationWorker WorkerConfig `mapstructure:"confirmation_worker"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type DatabaseConfig struct {
	// Driver selects the persistence backend: "postgres", "sqlite" or "" (disabled).
	Driver        string              `mapstructure:"driver"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	Index     string   `mapstructure:"index"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type APIsConfig struct {
	GenAI GenAIConfig `mapstructure:"genai"`
}

type GenAIConfig struct {
	// Provider is "http" (JSON generate endpoint) or "gemini".
	Provider     string  `mapstructure:"provider"`
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	Timeout      int     `mapstructure:"timeout"` // milliseconds
	MaxRetries   int     `mapstructure:"max_retries"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	Burst        int     `mapstructure:"burst"`
}

type CascadeConfig struct {
	ClassifierThreshold float64 `mapstructure:"classifier_threshold"`
	ModelName           string  `mapstructure:"model_name"`
	RegistryPath        string  `mapstructure:"registry_path"`
	FallbackTimeout     int     `mapstructure:"fallback_timeout_ms"`
	FallbackConfidence  float64 `mapstructure:"fallback_confidence"`
	FallbackEnabled     bool    `mapstructure:"fallback_enabled"`
}

type TieringConfig struct {
	RAGTopK           int     `mapstructure:"rag_top_k"`
	GenerationTimeout int     `mapstructure:"generation_timeout_ms"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	CacheBackend      string  `mapstructure:"cache_backend"` // memory | redis | none
	CacheTTL          int     `mapstructure:"cache_ttl_ms"`
	CacheSize         int     `mapstructure:"cache_size"`
	RetrievalBackend  string  `mapstructure:"retrieval_backend"` // memory | elasticsearch
}

type AccumulatorConfig struct {
	CommitTimeout       int    `mapstructure:"commit_timeout_ms"`
	PickupEstimate      string `mapstructure:"pickup_estimate"`
	ReservationsPerSlot int    `mapstructure:"reservations_per_slot"`
}

type SessionConfig struct {
	IdleTimeout   int    `mapstructure:"idle_timeout_ms"`
	HistorySize   int    `mapstructure:"history_size"`
	SweepInterval int    `mapstructure:"sweep_interval_ms"`
	SnapshotStore string `mapstructure:"snapshot_store"` // "" | redis
}

type BusinessConfig struct {
	DataPath      string `mapstructure:"data_path"`
	TemplatesPath string `mapstructure:"templates_path"`
	Source        string `mapstructure:"source"` // file | postgres
	Timezone      string `mapstructure:"timezone"`
	SnapshotTTL   int    `mapstructure:"snapshot_ttl_ms"`
}

type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

type NotificationConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	OwnerEmail string `mapstructure:"owner_email"`
	SMSEnabled bool   `mapstructure:"sms_enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
