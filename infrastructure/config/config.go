package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	domainconfig "reqgraph/domain/config"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Lock backends
const (
	LockNone     = "none"
	LockMemory   = "memory"
	LockRedis    = "redis"
	LockDynamoDB = "dynamodb"
)

// Notifier backends
const (
	NotifierLog       = "log"
	NotifierEvents    = "events"
	NotifierWebSocket = "websocket"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region"`
	DynamoDBTable    string `yaml:"table_name"`
	IndexName        string `yaml:"index_name"` // GSI1 - project-level node queries
	EventBusName     string `yaml:"event_bus_name"`
	ConnectionsTable string `yaml:"connections_table"`
	WebSocketURL     string `yaml:"websocket_endpoint"`

	// Backends
	StoreBackend    string `yaml:"store_backend"`
	LockBackend     string `yaml:"lock_backend"`
	NotifierBackend string `yaml:"notifier_backend"`
	RedisURL        string `yaml:"redis_url"`

	LockTTL  time.Duration `yaml:"lock_ttl"`
	LockWait time.Duration `yaml:"lock_wait"`

	// Engine
	OptionsMinCount int     `yaml:"options_min_count"`
	NodeWidth       float64 `yaml:"layout_node_width"`
	NodeHeight      float64 `yaml:"layout_node_height"`
	NodeGap         float64 `yaml:"layout_gap"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Observability
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Feature flags
	EnableTracing bool `yaml:"enable_tracing"`
	EnableEvents  bool `yaml:"enable_events"`
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableCORS    bool `yaml:"enable_cors"`
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func defaults() *Config {
	domain := domainconfig.DefaultDomainConfig()
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		AWSRegion:        "us-west-2",
		DynamoDBTable:    "reqgraph",
		IndexName:        "GSI1",
		EventBusName:     "reqgraph-events",
		ConnectionsTable: "reqgraph-connections",
		StoreBackend:     StoreMemory,
		LockBackend:      LockMemory,
		NotifierBackend:  NotifierLog,
		RedisURL:         "redis://localhost:6379/0",
		LockTTL:          30 * time.Second,
		LockWait:         10 * time.Second,
		OptionsMinCount:  domain.OptionsMinCount,
		NodeWidth:        domain.NodeWidth,
		NodeHeight:       domain.NodeHeight,
		NodeGap:          domain.NodeGap,
		LogLevel:         "info",
		OTLPEndpoint:     "localhost:4317",
		EnableCORS:       true,
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", c.DynamoDBTable)
	c.IndexName = getEnv("INDEX_NAME", c.IndexName)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.ConnectionsTable = getEnv("CONNECTIONS_TABLE", c.ConnectionsTable)
	c.WebSocketURL = getEnv("WEBSOCKET_ENDPOINT", c.WebSocketURL)

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.LockBackend = getEnv("LOCK_BACKEND", c.LockBackend)
	c.NotifierBackend = getEnv("NOTIFIER_BACKEND", c.NotifierBackend)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.LockTTL = getEnvDuration("LOCK_TTL", c.LockTTL)
	c.LockWait = getEnvDuration("LOCK_WAIT", c.LockWait)

	c.OptionsMinCount = getEnvInt("OPTIONS_MIN_COUNT", c.OptionsMinCount)
	c.NodeWidth = getEnvFloat("LAYOUT_NODE_WIDTH", c.NodeWidth)
	c.NodeHeight = getEnvFloat("LAYOUT_NODE_HEIGHT", c.NodeHeight)
	c.NodeGap = getEnvFloat("LAYOUT_GAP", c.NodeGap)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

// Validate checks backend names and engine settings
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreDynamoDB:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.LockBackend {
	case LockNone, LockMemory, LockRedis, LockDynamoDB:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	switch c.NotifierBackend {
	case NotifierLog, NotifierEvents, NotifierWebSocket:
	default:
		return fmt.Errorf("unknown NOTIFIER_BACKEND %q", c.NotifierBackend)
	}

	if c.StoreBackend == StoreDynamoDB || c.LockBackend == LockDynamoDB {
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
		}
	}
	if c.LockBackend == LockRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis lock backend")
	}
	if c.NotifierBackend == NotifierWebSocket && c.WebSocketURL == "" {
		return fmt.Errorf("WEBSOCKET_ENDPOINT is required for the websocket notifier")
	}
	if c.NotifierBackend == NotifierEvents && !c.EnableEvents {
		return fmt.Errorf("NOTIFIER_BACKEND=events requires ENABLE_EVENTS")
	}
	if c.LockTTL <= 0 || c.LockWait < 0 {
		return fmt.Errorf("LOCK_TTL must be positive and LOCK_WAIT non-negative")
	}

	if err := c.DomainConfig().Validate(); err != nil {
		return err
	}

	if c.Environment == "production" && c.StoreBackend == StoreMemory {
		return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
	}
	return nil
}

// DomainConfig returns the engine settings
func (c *Config) DomainConfig() *domainconfig.DomainConfig {
	return &domainconfig.DomainConfig{
		NodeWidth:       c.NodeWidth,
		NodeHeight:      c.NodeHeight,
		NodeGap:         c.NodeGap,
		OptionsMinCount: c.OptionsMinCount,
	}
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
