package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "heirloom.notifications", cfg.Kafka.NotificationsTopic)
	assert.Equal(t, 30, cfg.Jobs.EmptyLegacyDaysOld)
	assert.False(t, cfg.Succession.DemoMode)
	assert.False(t, cfg.HasKafka())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heirloom.toml")
	contents := `
[server]
addr = ":9000"
admin_token = "from-file"

[database]
driver = "postgres"
url = "postgres://localhost/heirloom"

[jobs]
scan_releases_interval = "15m"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path, envMap(map[string]string{
		"HEIRLOOM_ADMIN_TOKEN":   "from-env",
		"HEIRLOOM_KAFKA_BROKERS": "k1:9092, k2:9092,k1:9092,",
		"HEIRLOOM_DEMO_MODE":     "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Server.AdminToken)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Succession.DemoMode)
	assert.Equal(t, 15*time.Minute, cfg.Jobs.ScanReleasesInterval)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("postgres without url", func(t *testing.T) {
		_, err := Load("", envMap(map[string]string{"HEIRLOOM_DATABASE_DRIVER": "postgres"}))
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Load("", envMap(map[string]string{"HEIRLOOM_DATABASE_DRIVER": "sqlite"}))
		assert.Error(t, err)
	})

	t.Run("bad demo mode flag", func(t *testing.T) {
		_, err := Load("", envMap(map[string]string{"HEIRLOOM_DEMO_MODE": "maybe"}))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), envMap(nil))
		assert.Error(t, err)
	})
}

func TestRead(t *testing.T) {
	cfg, err := Read(strings.NewReader("[succession]\ndemo_mode = true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Succession.DemoMode)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}
