package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Fix sources.
const (
	FixSourceKafka = "kafka"
	FixSourceMQTT  = "mqtt"
)

// Zone stores.
const (
	ZoneStoreFile  = "file"
	ZoneStoreRedis = "redis"
)

// Device backends.
const (
	DeviceBackendSim    = "sim"
	DeviceBackendBridge = "bridge"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	FixSource string

	KafkaBrokers       []string
	KafkaFixTopic      string
	KafkaDecisionTopic string // empty disables decision publishing
	KafkaGroupID       string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	ZoneStore         string
	ZoneFile          string
	RedisAddr         string
	RedisZoneKey      string
	DefaultZoneRadius float64

	// DeviceID names the device this instance controls. Fixes reported by
	// any other device are ignored.
	DeviceID      string
	DeviceBackend string
	BridgeURL     string
	DeviceTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	deviceTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DEVICE_TIMEOUT", "2s"))
	if err != nil || deviceTimeout <= 0 {
		return nil, errors.New("invalid DEVICE_TIMEOUT")
	}

	radius, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("DEFAULT_ZONE_RADIUS_METERS", "50"), 64)
	if err != nil || !(radius > 0) {
		return nil, errors.New("invalid DEFAULT_ZONE_RADIUS_METERS: must be a positive number")
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		FixSource: sharedcfg.EnvOrDefault("FIX_SOURCE", FixSourceKafka),

		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFixTopic:      sharedcfg.EnvOrDefault("KAFKA_FIX_TOPIC", "device-location-fixes"),
		KafkaDecisionTopic: envOrDefaultAllowEmpty("KAFKA_DECISION_TOPIC", "ringer-decisions"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "mute-zones"),

		MQTTBroker:   sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopic:    sharedcfg.EnvOrDefault("MQTT_TOPIC", "owntracks/+/+"),
		MQTTClientID: sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "mute-zones"),

		ZoneStore:         sharedcfg.EnvOrDefault("ZONE_STORE", ZoneStoreFile),
		ZoneFile:          sharedcfg.EnvOrDefault("ZONE_FILE", "zones.yaml"),
		RedisAddr:         sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisZoneKey:      sharedcfg.EnvOrDefault("REDIS_ZONE_KEY", "mutezones:zones"),
		DefaultZoneRadius: radius,

		DeviceID:      os.Getenv("DEVICE_ID"),
		DeviceBackend: sharedcfg.EnvOrDefault("DEVICE_BACKEND", DeviceBackendSim),
		BridgeURL:     sharedcfg.EnvOrDefault("BRIDGE_URL", "http://127.0.0.1:8765"),
		DeviceTimeout: deviceTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.FixSource {
	case FixSourceKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaFixTopic == "" {
			return errors.New("KAFKA_FIX_TOPIC is required")
		}
	case FixSourceMQTT:
		if c.MQTTBroker == "" || c.MQTTTopic == "" {
			return errors.New("MQTT_BROKER and MQTT_TOPIC are required")
		}
	default:
		return fmt.Errorf("invalid FIX_SOURCE %q: want %s or %s", c.FixSource, FixSourceKafka, FixSourceMQTT)
	}

	switch c.ZoneStore {
	case ZoneStoreFile:
		if c.ZoneFile == "" {
			return errors.New("ZONE_FILE is required")
		}
	case ZoneStoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required")
		}
	default:
		return fmt.Errorf("invalid ZONE_STORE %q: want %s or %s", c.ZoneStore, ZoneStoreFile, ZoneStoreRedis)
	}

	switch c.DeviceBackend {
	case DeviceBackendSim:
	case DeviceBackendBridge:
		if c.BridgeURL == "" {
			return errors.New("BRIDGE_URL is required when DEVICE_BACKEND is bridge")
		}
	default:
		return fmt.Errorf("invalid DEVICE_BACKEND %q: want %s or %s", c.DeviceBackend, DeviceBackendSim, DeviceBackendBridge)
	}

	if c.KafkaDecisionTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_DECISION_TOPIC is set")
	}
	if c.DeviceID == "" {
		return errors.New("DEVICE_ID is required")
	}
	return nil
}

// envOrDefaultAllowEmpty distinguishes an unset variable (default applies)
// from one explicitly set to "" (feature disabled).
func envOrDefaultAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
