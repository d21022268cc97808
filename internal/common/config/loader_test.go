package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "app:\n  name: test-receptionist\n"))
	require.NoError(t, err)

	assert.Equal(t, "test-receptionist", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Cascade.ClassifierThreshold)
	assert.Equal(t, "models/registry.json", cfg.Cascade.RegistryPath)
	assert.Equal(t, "memory", cfg.Tiering.CacheBackend)
	assert.Equal(t, "memory", cfg.Tiering.RetrievalBackend)
	assert.Equal(t, 5, cfg.Accumulator.ReservationsPerSlot)
	assert.Equal(t, 4, cfg.Session.HistorySize)
	assert.Equal(t, "file", cfg.Business.Source)
	assert.Equal(t, 10*time.Minute, GetDuration(cfg.Session.IdleTimeout))
}

func TestLoadFromFile_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TEST_GENAI_KEY", "k-123")
	t.Setenv("OWNER_EMAIL", "")

	cfg, err := LoadFromFile(writeConfig(t, `
server:
  port: 8080
apis:
  genai:
    provider: gemini
    api_key: ${TEST_GENAI_KEY}
notifications:
  owner_email: ${UNSET_OWNER_EMAIL_FOR_TEST}
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "k-123", cfg.APIs.GenAI.APIKey)
	assert.Empty(t, cfg.Notifications.OwnerEmail)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"threshold out of range", "cascade:\n  classifier_threshold: 1.5\n"},
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"postgres without host", "database:\n  driver: postgres\n"},
		{"unknown provider", "apis:\n  genai:\n    provider: openai\n"},
		{"redis cache without address", "tiering:\n  cache_backend: redis\n"},
		{"elasticsearch without url", "tiering:\n  retrieval_backend: elasticsearch\n"},
		{"postgres facts without database", "business:\n  source: postgres\n"},
		{"camunda without broker", "camunda:\n  enabled: true\n"},
		{"bad owner email", "notifications:\n  enabled: true\n  owner_email: not-an-email\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_ShippedConfig(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Cascade.FallbackEnabled)
	assert.Equal(t, "America/Chicago", cfg.Business.Timezone)
}
