package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.PollInterval())
	assert.Equal(t, 10, cfg.Notifications.FetchLimit)
	assert.True(t, cfg.Notifications.RedundantPolling)
	assert.Equal(t, 5, cfg.Realtime.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RealtimeBackoff())
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
api:
  base_url: https://shop.example.com/api
notifications:
  poll_interval_sec: 15
  fetch_limit: 25
realtime:
  enabled: false
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.PollInterval())
	assert.Equal(t, 25, cfg.Notifications.FetchLimit)
	assert.False(t, cfg.RealtimeSupported())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SHOPFRONT_API_BASE_URL", "https://env.example.com/api")
	t.Setenv("SHOPFRONT_NOTIFICATIONS_POLL_INTERVAL_SEC", "5")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
}

func TestRealtimeSupported(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		want bool
	}{
		{
			name: "enabled on a regular host",
			cfg: AppConfig{
				API:      APIConfig{BaseURL: "https://api.shop.example.com"},
				Realtime: RealtimeConfig{Enabled: true, URL: "wss://api.shop.example.com/ws", DisabledPattern: `\.vercel\.app`},
			},
			want: true,
		},
		{
			name: "serverless host matches pattern",
			cfg: AppConfig{
				API:      APIConfig{BaseURL: "https://shop.vercel.app/api"},
				Realtime: RealtimeConfig{Enabled: true, URL: "wss://shop.vercel.app/ws", DisabledPattern: `\.vercel\.app`},
			},
			want: false,
		},
		{
			name: "no url",
			cfg: AppConfig{
				Realtime: RealtimeConfig{Enabled: true},
			},
			want: false,
		},
		{
			name: "explicitly disabled",
			cfg: AppConfig{
				Realtime: RealtimeConfig{Enabled: false, URL: "ws://localhost/ws"},
			},
			want: false,
		},
		{
			name: "bad pattern",
			cfg: AppConfig{
				Realtime: RealtimeConfig{Enabled: true, URL: "ws://localhost/ws", DisabledPattern: "("},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.RealtimeSupported())
		})
	}
}
