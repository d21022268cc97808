package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"restaurant-receptionist/internal/common/validation"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and lets environment variables override any key (database.redis.address ->
// DATABASE_REDIS_ADDRESS).
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads a single YAML file without environment layering.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// unset variables expand to "" so applyDefaults can fill them
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.GenAI.APIKey == "" {
		if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.APIs.GenAI.APIKey = val
		} else if val := os.Getenv("GEMINI_API_KEY"); val != "" {
			cfg.APIs.GenAI.APIKey = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Notifications.OwnerEmail == "" {
		if val := os.Getenv("OWNER_EMAIL"); val != "" {
			cfg.Notifications.OwnerEmail = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "restaurant-receptionist"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TurnTimeout == 0 {
		cfg.Server.TurnTimeout = 15000
	}

	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 10000
	}
	if cfg.Camunda.OrderProcessID == "" {
		cfg.Camunda.OrderProcessID = "order-fulfillment"
	}
	if cfg.Camunda.ReservationProcessID == "" {
		cfg.Camunda.ReservationProcessID = "reservation-confirmation"
	}
	if cfg.Camunda.ConfirmationWorker.MaxJobsActive == 0 {
		cfg.Camunda.ConfirmationWorker.MaxJobsActive = 5
	}
	if cfg.Camunda.ConfirmationWorker.Timeout == 0 {
		cfg.Camunda.ConfirmationWorker.Timeout = 30000
	}
	if cfg.Camunda.ConfirmationWorker.MaxRetries == 0 {
		cfg.Camunda.ConfirmationWorker.MaxRetries = 3
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/receptionist.db"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "business-passages"
	}

	if cfg.APIs.GenAI.Provider == "" {
		cfg.APIs.GenAI.Provider = "http"
	}
	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gemini-2.0-flash"
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 10000
	}
	if cfg.APIs.GenAI.Burst == 0 {
		cfg.APIs.GenAI.Burst = 5
	}

	if cfg.Cascade.ClassifierThreshold == 0 {
		cfg.Cascade.ClassifierThreshold = 0.7
	}
	if cfg.Cascade.ModelName == "" {
		cfg.Cascade.ModelName = "intent"
	}
	if cfg.Cascade.RegistryPath == "" {
		cfg.Cascade.RegistryPath = "models/registry.json"
	}
	if cfg.Cascade.FallbackTimeout == 0 {
		cfg.Cascade.FallbackTimeout = 3000
	}
	if cfg.Cascade.FallbackConfidence == 0 {
		cfg.Cascade.FallbackConfidence = 0.6
	}

	if cfg.Tiering.RAGTopK == 0 {
		cfg.Tiering.RAGTopK = 3
	}
	if cfg.Tiering.GenerationTimeout == 0 {
		cfg.Tiering.GenerationTimeout = 8000
	}
	if cfg.Tiering.MaxTokens == 0 {
		cfg.Tiering.MaxTokens = 150
	}
	if cfg.Tiering.Temperature == 0 {
		cfg.Tiering.Temperature = 0.3
	}
	if cfg.Tiering.CacheBackend == "" {
		cfg.Tiering.CacheBackend = "memory"
	}
	if cfg.Tiering.CacheTTL == 0 {
		cfg.Tiering.CacheTTL = int((24 * time.Hour).Milliseconds())
	}
	if cfg.Tiering.CacheSize == 0 {
		cfg.Tiering.CacheSize = 500
	}
	if cfg.Tiering.RetrievalBackend == "" {
		cfg.Tiering.RetrievalBackend = "memory"
	}

	if cfg.Accumulator.CommitTimeout == 0 {
		cfg.Accumulator.CommitTimeout = 5000
	}
	if cfg.Accumulator.PickupEstimate == "" {
		cfg.Accumulator.PickupEstimate = "25-30 minutes"
	}
	if cfg.Accumulator.ReservationsPerSlot == 0 {
		cfg.Accumulator.ReservationsPerSlot = 5
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 600000
	}
	if cfg.Session.HistorySize == 0 {
		cfg.Session.HistorySize = 4
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 30000
	}

	if cfg.Business.Source == "" {
		cfg.Business.Source = "file"
	}
	if cfg.Business.DataPath == "" {
		cfg.Business.DataPath = "data/business_data.json"
	}
	if cfg.Business.TemplatesPath == "" {
		cfg.Business.TemplatesPath = "data/templates.yaml"
	}
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = "America/New_York"
	}
	if cfg.Business.SnapshotTTL == 0 {
		cfg.Business.SnapshotTTL = 300000
	}

	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "us-east-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Cascade.ClassifierThreshold < 0 || cfg.Cascade.ClassifierThreshold > 1 {
		return fmt.Errorf("cascade.classifier_threshold must be within [0,1], got %v", cfg.Cascade.ClassifierThreshold)
	}
	if cfg.Session.HistorySize < 1 {
		return fmt.Errorf("session.history_size must be positive")
	}

	switch cfg.Database.Driver {
	case "", "sqlite":
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}

	switch cfg.APIs.GenAI.Provider {
	case "http", "gemini", "none":
	default:
		return fmt.Errorf("apis.genai.provider %q is not supported", cfg.APIs.GenAI.Provider)
	}

	if cfg.Tiering.CacheBackend == "redis" || cfg.Session.SnapshotStore == "redis" {
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when redis is used")
		}
	}
	if cfg.Tiering.RetrievalBackend == "elasticsearch" && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}
	if cfg.Business.Source == "postgres" && cfg.Database.Driver == "" {
		return fmt.Errorf("business.source postgres requires database.driver")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Notifications.Enabled && cfg.Notifications.OwnerEmail != "" && !validation.ValidateEmail(cfg.Notifications.OwnerEmail) {
		return fmt.Errorf("notifications.owner_email %q is not a valid address", cfg.Notifications.OwnerEmail)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
