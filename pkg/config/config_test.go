package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.Room.JoinTimeout)
	assert.Equal(t, SessionBackendFile, cfg.Session.Backend)
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty api url", func(c *Config) { c.API.BaseURL = "" }},
		{"non-http api url", func(c *Config) { c.API.BaseURL = "ftp://example.com" }},
		{"zero api timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"non-ws signal url", func(c *Config) { c.Signal.URL = "http://example.com/ws" }},
		{"pong not after ping", func(c *Config) { c.Signal.PongTimeout = c.Signal.PingInterval }},
		{"negative max message size", func(c *Config) { c.Signal.MaxMessageSizeBytes = -1 }},
		{"zero rate", func(c *Config) { c.Signal.MessagesPerSecond = 0 }},
		{"zero join timeout", func(c *Config) { c.Room.JoinTimeout = 0 }},
		{"default max participants too low", func(c *Config) { c.Room.DefaultMaxParticipants = 1 }},
		{"default max participants too high", func(c *Config) { c.Room.DefaultMaxParticipants = 51 }},
		{"half port range", func(c *Config) { c.WebRTC.PortRange.Min = 10000 }},
		{"inverted port range", func(c *Config) {
			c.WebRTC.PortRange.Min = 20000
			c.WebRTC.PortRange.Max = 10000
		}},
		{"unknown backend", func(c *Config) { c.Session.Backend = "sqlite" }},
		{"file backend without path", func(c *Config) { c.Session.FilePath = "" }},
		{"redis backend without address", func(c *Config) {
			c.Session.Backend = SessionBackendRedis
			c.Redis.Address = ""
		}},
		{"status without address", func(c *Config) {
			c.Status.Enabled = true
			c.Status.Address = ""
		}},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
		{"bad sample rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 2
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API.BaseURL, cfg.API.BaseURL)
}

func TestLoad_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomlink.yaml")
	data := []byte(`
api:
  base_url: https://rooms.example.com/api
  timeout: 5s
signal:
  url: wss://rooms.example.com/ws
room:
  join_timeout: 3s
session:
  backend: memory
webrtc:
  ice_servers:
    - urls: ["turn:turn.example.com:3478"]
      username: u
      credential: p
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rooms.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "wss://rooms.example.com/ws", cfg.Signal.URL)
	assert.Equal(t, 3*time.Second, cfg.Room.JoinTimeout)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	require.Len(t, cfg.WebRTC.ICEServers, 1)
	assert.Equal(t, "u", cfg.WebRTC.ICEServers[0].Username)
	// untouched sections keep their defaults
	assert.Equal(t, DefaultConfig().Signal.PingInterval, cfg.Signal.PingInterval)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROOMLINK_API_URL", "http://10.0.0.1:8080/api")
	t.Setenv("ROOMLINK_SESSION_BACKEND", "memory")
	t.Setenv("ROOMLINK_JOIN_TIMEOUT", "2s")
	t.Setenv("ROOMLINK_MEDIA_ENABLED", "false")
	t.Setenv("ROOMLINK_STATUS_ADDRESS", "127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.1:8080/api", cfg.API.BaseURL)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 2*time.Second, cfg.Room.JoinTimeout)
	assert.False(t, cfg.WebRTC.Media.Enabled)
	assert.True(t, cfg.Status.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Status.Address)
}

func TestLoad_EnvOverrideInvalidatesConfig(t *testing.T) {
	t.Setenv("ROOMLINK_SESSION_BACKEND", "etcd")

	_, err := Load("")
	assert.Error(t, err)
}
