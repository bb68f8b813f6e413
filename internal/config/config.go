// Package config manages application configuration loading and validation.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/krakenws/internal/telemetry"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

const (
	// PublicEndpoint serves market data channels.
	PublicEndpoint = "wss://ws.kraken.com/v2"
	// AuthEndpoint serves channels that require a session token.
	AuthEndpoint = "wss://ws-auth.kraken.com/v2"
)

// ReconnectConfig bounds the exponential backoff used when dialing.
type ReconnectConfig struct {
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
	MaxElapsed      time.Duration `yaml:"maxElapsed"`
	MaxAttempts     uint          `yaml:"maxAttempts"`
}

// ConnectionConfig describes the websocket session.
type ConnectionConfig struct {
	Endpoint       string          `yaml:"endpoint"`
	DialTimeout    time.Duration   `yaml:"dialTimeout"`
	RequestTimeout time.Duration   `yaml:"requestTimeout"`
	PingInterval   time.Duration   `yaml:"pingInterval"`
	ReadLimitBytes int64           `yaml:"readLimitBytes"`
	StartReqID     int64           `yaml:"startReqId"`
	RequestRate    float64         `yaml:"requestRate"`
	RequestBurst   int             `yaml:"requestBurst"`
	Reconnect      ReconnectConfig `yaml:"reconnect"`
}

// TelemetryConfig configures the OTLP metrics exporter. Empty values fall
// back to the OTEL_* environment.
type TelemetryConfig struct {
	Enabled      *bool  `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
	ServiceName  string `yaml:"serviceName"`
}

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`
	Prefix string `yaml:"prefix"`
	Format string `yaml:"format"`
}

// RedisSinkConfig keeps the latest record per channel and symbol in Redis
// and republishes every record on a pub/sub channel.
type RedisSinkConfig struct {
	Addr        string        `yaml:"addr"`
	DB          int           `yaml:"db"`
	PasswordEnv string        `yaml:"passwordEnv"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	TTL         time.Duration `yaml:"ttl"`
}

// KafkaSinkConfig writes every record to one topic keyed by channel and symbol.
type KafkaSinkConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
}

// SinkConfig lists where decoded feed messages are forwarded. Both sinks
// are optional.
type SinkConfig struct {
	QueueSize int              `yaml:"queueSize"`
	Redis     *RedisSinkConfig `yaml:"redis"`
	Kafka     *KafkaSinkConfig `yaml:"kafka"`
}

// Enabled reports whether any sink is configured.
func (s SinkConfig) Enabled() bool { return s.Redis != nil || s.Kafka != nil }

// AppConfig is the unified krakenws configuration sourced from YAML.
type AppConfig struct {
	Environment   Environment          `yaml:"environment"`
	Connection    ConnectionConfig     `yaml:"connection"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	Sinks         SinkConfig           `yaml:"sinks"`
	Telemetry     TelemetryConfig      `yaml:"telemetry"`
	Logging       LoggingConfig        `yaml:"logging"`
}

// Default returns a configuration that watches the public BTC/USD ticker.
func Default() AppConfig {
	cfg := AppConfig{
		Environment: EnvDev,
		Subscriptions: []SubscriptionConfig{
			{Channel: "ticker", Symbols: []string{"BTC/USD"}},
		},
	}
	cfg.normalise()
	return cfg
}

// Load reads and validates an AppConfig from the provided YAML file.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	data, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but returns Default when the file does not
// exist.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, error) {
	cfg, err := Load(ctx, configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes, normalises and validates YAML configuration bytes.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}

	conn := &c.Connection
	conn.Endpoint = strings.TrimSpace(conn.Endpoint)
	if conn.Endpoint == "" {
		conn.Endpoint = PublicEndpoint
		if c.needsToken() {
			conn.Endpoint = AuthEndpoint
		}
	}
	if conn.DialTimeout <= 0 {
		conn.DialTimeout = 10 * time.Second
	}
	if conn.RequestTimeout <= 0 {
		conn.RequestTimeout = 5 * time.Second
	}
	if conn.PingInterval < 0 {
		conn.PingInterval = 0
	}
	if conn.ReadLimitBytes <= 0 {
		conn.ReadLimitBytes = 1 << 20
	}
	if conn.StartReqID <= 0 {
		conn.StartReqID = 1
	}
	if conn.RequestRate <= 0 {
		conn.RequestRate = 5
	}
	if conn.RequestBurst <= 0 {
		conn.RequestBurst = 1
	}
	if conn.Reconnect.InitialInterval <= 0 {
		conn.Reconnect.InitialInterval = 500 * time.Millisecond
	}
	if conn.Reconnect.MaxInterval <= 0 {
		conn.Reconnect.MaxInterval = 30 * time.Second
	}
	if conn.Reconnect.MaxElapsed <= 0 {
		conn.Reconnect.MaxElapsed = 5 * time.Minute
	}

	for i := range c.Subscriptions {
		c.Subscriptions[i].normalise()
	}

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Logging.Prefix == "" {
		c.Logging.Prefix = "krakenws "
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	c.Sinks.normalise()
}

func (s *SinkConfig) normalise() {
	if s.QueueSize <= 0 {
		s.QueueSize = 1024
	}
	if r := s.Redis; r != nil {
		r.Addr = strings.TrimSpace(r.Addr)
		if r.KeyPrefix == "" {
			r.KeyPrefix = "krakenws:"
		}
		if r.TTL <= 0 {
			r.TTL = time.Hour
		}
	}
	if k := s.Kafka; k != nil {
		brokers := k.Brokers[:0]
		for _, b := range k.Brokers {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		k.Brokers = brokers
		k.Topic = strings.TrimSpace(k.Topic)
		if k.BatchTimeout <= 0 {
			k.BatchTimeout = 50 * time.Millisecond
		}
	}
}

func (c AppConfig) needsToken() bool {
	for _, sub := range c.Subscriptions {
		if sub.requiresToken() {
			return true
		}
	}
	return false
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	conn := c.Connection
	if !strings.HasPrefix(conn.Endpoint, "wss://") && !strings.HasPrefix(conn.Endpoint, "ws://") {
		return fmt.Errorf("connection endpoint must be a ws:// or wss:// url")
	}
	if conn.DialTimeout <= 0 {
		return fmt.Errorf("connection dialTimeout must be >0")
	}
	if conn.RequestTimeout <= 0 {
		return fmt.Errorf("connection requestTimeout must be >0")
	}
	if conn.RequestRate <= 0 {
		return fmt.Errorf("connection requestRate must be >0")
	}
	if conn.RequestBurst <= 0 {
		return fmt.Errorf("connection requestBurst must be >0")
	}
	if conn.Reconnect.MaxInterval < conn.Reconnect.InitialInterval {
		return fmt.Errorf("connection reconnect maxInterval must be >= initialInterval")
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("logging format must be text or json")
	}
	if r := c.Sinks.Redis; r != nil && r.Addr == "" {
		return fmt.Errorf("sinks redis addr required")
	}
	if k := c.Sinks.Kafka; k != nil {
		if len(k.Brokers) == 0 {
			return fmt.Errorf("sinks kafka brokers required")
		}
		if k.Topic == "" {
			return fmt.Errorf("sinks kafka topic required")
		}
	}

	if len(c.Subscriptions) == 0 {
		return fmt.Errorf("at least one subscription required")
	}
	seen := make(map[string]struct{}, len(c.Subscriptions))
	for i, sub := range c.Subscriptions {
		if err := sub.validate(); err != nil {
			return fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
		key := sub.key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("subscriptions[%d]: duplicate subscription %s", i, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// TelemetrySettings overlays the file's telemetry settings on base, which
// usually comes from telemetry.DefaultConfig.
func (c AppConfig) TelemetrySettings(base telemetry.Config) telemetry.Config {
	if c.Telemetry.Enabled != nil {
		base.Enabled = *c.Telemetry.Enabled
	}
	if c.Telemetry.OTLPEndpoint != "" {
		base.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	}
	if c.Telemetry.OTLPInsecure {
		base.OTLPInsecure = true
	}
	if c.Telemetry.ServiceName != "" {
		base.ServiceName = c.Telemetry.ServiceName
	}
	base.Environment = string(c.Environment)
	return base
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
