package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"roomlink/pkg/circuitbreaker"
	"roomlink/pkg/retry"
	"roomlink/pkg/tracing"

	"gopkg.in/yaml.v2"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	API struct {
		BaseURL        string                `yaml:"base_url"`
		Timeout        time.Duration         `yaml:"timeout"`
		Retry          retry.Config          `yaml:"retry"`
		CircuitBreaker circuitbreaker.Config `yaml:"circuit_breaker"`
	} `yaml:"api"`

	Signal struct {
		URL                 string        `yaml:"url"`
		HandshakeTimeout    time.Duration `yaml:"handshake_timeout"`
		PingInterval        time.Duration `yaml:"ping_interval"`
		PongTimeout         time.Duration `yaml:"pong_timeout"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
		MessagesPerSecond   float64       `yaml:"messages_per_second"`
		Burst               int           `yaml:"burst"`
		EventBuffer         int           `yaml:"event_buffer"`
	} `yaml:"signal"`

	Room struct {
		JoinTimeout            time.Duration `yaml:"join_timeout"`
		DefaultMaxParticipants int           `yaml:"default_max_participants"`
	} `yaml:"room"`

	WebRTC struct {
		ICEServers []ICEServer `yaml:"ice_servers"`
		PortRange  struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		Media struct {
			Enabled bool `yaml:"enabled"`
			Audio   bool `yaml:"audio"`
			Video   bool `yaml:"video"`
		} `yaml:"media"`
	} `yaml:"webrtc"`

	Session struct {
		Backend  string `yaml:"backend"`
		FilePath string `yaml:"file_path"`
	} `yaml:"session"`

	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Status struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
		// Token, when set, is required as a bearer token on every endpoint
		// except /health.
		Token             string  `yaml:"token"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"status"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing tracing.Config `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// API
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.Retry.Enabled && c.API.Retry.MaxAttempts < 0 {
		return fmt.Errorf("api.retry.max_attempts must be >= 0")
	}
	if c.API.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("api.circuit_breaker.failure_threshold must be > 0")
	}

	// Signal
	if c.Signal.URL == "" {
		return fmt.Errorf("signal.url must not be empty")
	}
	if u, err := url.Parse(c.Signal.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("signal.url must be a ws(s) URL")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be > signal.ping_interval")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}
	if c.Signal.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("signal.max_message_size_bytes must be >= 0")
	}
	if c.Signal.MessagesPerSecond <= 0 || c.Signal.Burst <= 0 {
		return fmt.Errorf("signal.messages_per_second and signal.burst must be > 0")
	}

	// Room
	if c.Room.JoinTimeout <= 0 {
		return fmt.Errorf("room.join_timeout must be > 0")
	}
	if c.Room.DefaultMaxParticipants < 2 || c.Room.DefaultMaxParticipants > 50 {
		return fmt.Errorf("room.default_max_participants must be within [2,50]")
	}

	// WebRTC
	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}

	// Session
	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendFile:
		if c.Session.FilePath == "" {
			return fmt.Errorf("session.file_path must not be empty when session.backend=file")
		}
	case SessionBackendRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when session.backend=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when session.backend=redis")
		}
	default:
		return fmt.Errorf("session.backend must be one of memory, file, redis; got %q", c.Session.Backend)
	}

	// Status
	if c.Status.Enabled && c.Status.Address == "" {
		return fmt.Errorf("status.address must not be empty when status.enabled=true")
	}
	if c.Status.RequestsPerSecond < 0 || c.Status.Burst < 0 {
		return fmt.Errorf("status.requests_per_second and status.burst must be >= 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sample_rate must be within [0,1]")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.API.BaseURL = "http://localhost:3000/api"
	cfg.API.Timeout = 10 * time.Second
	cfg.API.Retry = retry.DefaultConfig()
	cfg.API.CircuitBreaker = circuitbreaker.DefaultConfig()

	cfg.Signal.URL = "ws://localhost:3000/ws"
	cfg.Signal.HandshakeTimeout = 10 * time.Second
	cfg.Signal.PingInterval = 25 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.MaxMessageSizeBytes = 256 * 1024
	cfg.Signal.MessagesPerSecond = 20
	cfg.Signal.Burst = 40
	cfg.Signal.EventBuffer = 64

	cfg.Room.JoinTimeout = 15 * time.Second
	cfg.Room.DefaultMaxParticipants = 10

	cfg.WebRTC.ICEServers = []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}
	cfg.WebRTC.Media.Enabled = true
	cfg.WebRTC.Media.Audio = true
	cfg.WebRTC.Media.Video = true

	cfg.Session.Backend = SessionBackendFile
	cfg.Session.FilePath = defaultSessionPath()

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 4
	cfg.Redis.KeyPrefix = "roomlink"

	cfg.Status.Enabled = false
	cfg.Status.Address = "127.0.0.1:9477"
	cfg.Status.RequestsPerSecond = 10
	cfg.Status.Burst = 20

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	cfg.Tracing = tracing.DefaultConfig()

	return cfg
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".roomlink-session.json"
	}
	return filepath.Join(dir, "roomlink", "session.json")
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROOMLINK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("ROOMLINK_SIGNAL_URL"); v != "" {
		c.Signal.URL = v
	}
	if v := os.Getenv("ROOMLINK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ROOMLINK_SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := os.Getenv("ROOMLINK_SESSION_FILE"); v != "" {
		c.Session.FilePath = v
	}
	if v := os.Getenv("ROOMLINK_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("ROOMLINK_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ROOMLINK_JOIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Room.JoinTimeout = d
		}
	}
	if v := os.Getenv("ROOMLINK_MEDIA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WebRTC.Media.Enabled = b
		}
	}
	if v := os.Getenv("ROOMLINK_STATUS_TOKEN"); v != "" {
		c.Status.Token = v
	}
	if v := os.Getenv("ROOMLINK_STATUS_ADDRESS"); v != "" {
		c.Status.Enabled = true
		c.Status.Address = v
	}
}
