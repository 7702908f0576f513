package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for a Tally agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// LLM configuration
	LLMEndpoint   string
	LLMModel      string
	LLMEmbedModel string
	LLMTimeoutSec int

	// Assistant configuration
	PolicyPath          string
	InboundTopics       []string
	ConfidenceThreshold float64
	ConfidenceStep      float64
	ConfidenceFloor     float64
	ConfirmationTTLMin  int
	FuzzyMatchMaxDist   float64

	// Digest agent configuration
	MorningDigestCron string
	EveningDigestCron string
	QuietGraceMin     int
	Latitude          float64
	Longitude         float64
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		MQTTClientID:               "",
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "tally",
		PostgresPassword:           "",
		PostgresDB:                 "tally",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName:                "tally-agent",
		HealthPort:                 8080,
		LogLevel:                   "info",
		LLMEndpoint:                "http://localhost:11434",
		LLMModel:                   "llama3.2:3b",
		LLMEmbedModel:              "nomic-embed-text",
		LLMTimeoutSec:              30,
		PolicyPath:                 "",
		InboundTopics:              []string{"assistant/inbound/+/+"},
		ConfidenceThreshold:        0.5,
		ConfidenceStep:             0.15,
		ConfidenceFloor:            0.05,
		ConfirmationTTLMin:         5,
		FuzzyMatchMaxDist:          0.25,
		// Digest defaults (Helsinki coordinates)
		MorningDigestCron: "0 8 * * *",
		EveningDigestCron: "0 20 * * *",
		QuietGraceMin:     90,
		Latitude:          60.1695,
		Longitude:         24.9354,
	}
}

// LoadFromEnv loads configuration from environment variables with TALLY_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("TALLY_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("TALLY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("TALLY_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("TALLY_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("TALLY_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("TALLY_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("TALLY_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("TALLY_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("TALLY_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("TALLY_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("TALLY_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("TALLY_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("TALLY_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("TALLY_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("TALLY_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}
	if v := os.Getenv("TALLY_POSTGRES_MAX_CONNECTIONS"); v != "" {
		if maxConns, err := strconv.Atoi(v); err == nil {
			c.PostgresMaxConnections = maxConns
		}
	}

	// Service configuration
	if v := os.Getenv("TALLY_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("TALLY_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("TALLY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// LLM configuration
	if v := os.Getenv("TALLY_LLM_ENDPOINT"); v != "" {
		c.LLMEndpoint = v
	}
	if v := os.Getenv("TALLY_LLM_MODEL"); v != "" {
		c.LLMModel = v
	}
	if v := os.Getenv("TALLY_LLM_EMBED_MODEL"); v != "" {
		c.LLMEmbedModel = v
	}
	if v := os.Getenv("TALLY_LLM_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.LLMTimeoutSec = sec
		}
	}

	// Assistant configuration
	if v := os.Getenv("TALLY_POLICY_PATH"); v != "" {
		c.PolicyPath = v
	}
	if v := os.Getenv("TALLY_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("TALLY_CONFIDENCE_STEP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceStep = f
		}
	}
	if v := os.Getenv("TALLY_CONFIDENCE_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceFloor = f
		}
	}
	if v := os.Getenv("TALLY_CONFIRMATION_TTL_MIN"); v != "" {
		if min, err := strconv.Atoi(v); err == nil {
			c.ConfirmationTTLMin = min
		}
	}
	if v := os.Getenv("TALLY_FUZZY_MATCH_MAX_DIST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.FuzzyMatchMaxDist = f
		}
	}

	// Digest agent configuration
	if v := os.Getenv("TALLY_MORNING_DIGEST_CRON"); v != "" {
		c.MorningDigestCron = v
	}
	if v := os.Getenv("TALLY_EVENING_DIGEST_CRON"); v != "" {
		c.EveningDigestCron = v
	}
	if v := os.Getenv("TALLY_QUIET_GRACE_MIN"); v != "" {
		if min, err := strconv.Atoi(v); err == nil {
			c.QuietGraceMin = min
		}
	}
	if v := os.Getenv("TALLY_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("TALLY_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	pflag.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	pflag.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	pflag.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres username")
	pflag.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	pflag.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	pflag.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// LLM flags
	pflag.StringVar(&c.LLMEndpoint, "llm-endpoint", c.LLMEndpoint, "LLM API base URL")
	pflag.StringVar(&c.LLMModel, "llm-model", c.LLMModel, "LLM model name")
	pflag.StringVar(&c.LLMEmbedModel, "llm-embed-model", c.LLMEmbedModel, "LLM embedding model name")
	pflag.IntVar(&c.LLMTimeoutSec, "llm-timeout", c.LLMTimeoutSec, "LLM request timeout in seconds")

	// Assistant flags
	pflag.StringVar(&c.PolicyPath, "policy-path", c.PolicyPath, "Path to the assistant policy YAML file")
	pflag.Float64Var(&c.ConfidenceThreshold, "confidence-threshold", c.ConfidenceThreshold, "Minimum pattern confidence to act on a hint")
	pflag.Float64Var(&c.ConfidenceStep, "confidence-step", c.ConfidenceStep, "Step size for confidence reinforcement and decay")
	pflag.Float64Var(&c.ConfidenceFloor, "confidence-floor", c.ConfidenceFloor, "Lower bound confidence never decays below")
	pflag.IntVar(&c.ConfirmationTTLMin, "confirmation-ttl", c.ConfirmationTTLMin, "Pending confirmation timeout in minutes")
	pflag.Float64Var(&c.FuzzyMatchMaxDist, "fuzzy-match-max-dist", c.FuzzyMatchMaxDist, "Maximum cosine distance for fuzzy term matches")

	// Digest agent flags
	pflag.StringVar(&c.MorningDigestCron, "morning-digest-cron", c.MorningDigestCron, "Cron spec for the morning digest")
	pflag.StringVar(&c.EveningDigestCron, "evening-digest-cron", c.EveningDigestCron, "Cron spec for the evening digest")
	pflag.IntVar(&c.QuietGraceMin, "quiet-grace-min", c.QuietGraceMin, "Minutes after dusk before quiet hours begin")
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for daylight calculation")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for daylight calculation")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("Postgres host is required")
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("Postgres port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1]")
	}
	if c.ConfidenceStep <= 0 || c.ConfidenceStep >= 1 {
		return fmt.Errorf("confidence step must be in (0,1)")
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor >= 1 {
		return fmt.Errorf("confidence floor must be in [0,1)")
	}
	if c.ConfirmationTTLMin <= 0 {
		return fmt.Errorf("confirmation TTL must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDB, c.PostgresSSLMode)
}

// ConfirmationTTL returns the pending confirmation timeout as a duration
func (c *Config) ConfirmationTTL() time.Duration {
	return time.Duration(c.ConfirmationTTLMin) * time.Minute
}

// LLMTimeout returns the LLM request timeout as a duration
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}
