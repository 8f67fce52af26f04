package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no smartcart.yaml is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, []string{"Orange Juice", "Toilet Paper", "Lemons"}, cfg.Products)
	assert.Empty(t, cfg.Retailers)
	assert.Equal(t, 10, cfg.ResultLimit)
	assert.Equal(t, 45*time.Second, cfg.Politeness.MinInterval)
	assert.Equal(t, 120, cfg.Polling.MaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, cfg.Polling.BlockedMin)
	assert.Equal(t, 2, cfg.Retry.Attempts)
	assert.Equal(t, "B2V2J5", cfg.Location.PostalCode)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "0 0 */12 * * *", cfg.Schedule)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SMARTCART_PRODUCTS", "Milk,Eggs")
	t.Setenv("SMARTCART_POLITENESS_MIN_INTERVAL", "10s")
	t.Setenv("SMARTCART_BROWSER_HEADLESS", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/smartcart")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"Milk", "Eggs"}, cfg.Products)
	assert.Equal(t, 10*time.Second, cfg.Politeness.MinInterval)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "postgres://localhost/smartcart", cfg.DatabaseURL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
products:
  - Bananas
retailers: [walmart, sobeys]
polling:
  max_attempts: 30
retry:
  delay: 30s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, []string{"Bananas"}, cfg.Products)
	assert.Equal(t, []string{"walmart", "sobeys"}, cfg.Retailers)
	assert.Equal(t, 30, cfg.Polling.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Retry.Delay)
	assert.Equal(t, 10, cfg.ResultLimit)
}

func TestLoadFindsDefaultConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smartcart.yaml"), []byte("workers: 7\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown environment", map[string]string{"SMARTCART_ENVIRONMENT": "staging"}},
		{"no products", map[string]string{"SMARTCART_PRODUCTS": " , "}},
		{"zero workers", map[string]string{"SMARTCART_WORKERS": "0"}},
		{"zero poll budget", map[string]string{"SMARTCART_POLLING_MAX_ATTEMPTS": "0"}},
		{"inverted delay range", map[string]string{"SMARTCART_POLLING_IDLE_MIN": "10s"}},
		{"no attempts", map[string]string{"SMARTCART_RETRY_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := chdirTemp(t)
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
