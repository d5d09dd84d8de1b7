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

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tehran", cfg.Calendar.Timezone)
	assert.Equal(t, 180*time.Second, cfg.Scrape.PageLoadTimeout)
	assert.Equal(t, 25*time.Second, cfg.Scrape.TableTimeout)
	assert.Equal(t, 7*time.Second, cfg.Scrape.DetailTimeout)
	assert.Equal(t, 3, cfg.Scrape.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Scrape.RestartDelay)
	assert.Equal(t, "csv", cfg.Storage.Driver)
	assert.Equal(t, "forex_factory_cache.csv", cfg.Storage.CSVPath)
	assert.Equal(t, 1400, cfg.Browser.WindowWidth)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
calendar:
  timezone: Europe/London
scrape:
  details: true
  max_attempts: 5
  table_timeout: 40s
storage:
  driver: postgres
database:
  dsn: postgres://localhost/ffcal
`))
	require.NoError(t, err)

	assert.True(t, cfg.Scrape.Details)
	assert.Equal(t, 5, cfg.Scrape.MaxAttempts)
	assert.Equal(t, 40*time.Second, cfg.Scrape.TableTimeout)
	loc, err := cfg.Calendar.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown timezone":     "calendar:\n  timezone: Mars/Olympus\n",
		"zero attempts":        "scrape:\n  max_attempts: 0\n",
		"unknown driver":       "storage:\n  driver: sqlite\n",
		"postgres without dsn": "storage:\n  driver: postgres\n",
		"telegram without key": "alerting:\n  telegram:\n    enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestResolveDays(t *testing.T) {
	cfg := &Config{Export: ExportConfig{DefaultDays: 30}}
	assert.Equal(t, 30, cfg.ResolveDays(0))
	assert.Equal(t, 7, cfg.ResolveDays(7))
}
