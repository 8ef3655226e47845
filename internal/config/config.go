package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type AppConfig struct {
	Port        string
	HTTPTimeout time.Duration
	LogLevel    string

	NOAABaseURL       string
	GeocoderBaseURL   string
	GeocoderUserAgent string

	// SyncInterval controls how often the background sync fetches data.
	SyncInterval   time.Duration
	NotifyCooldown time.Duration

	// Day window around today for the bucketed view.
	WindowDaysBack    int
	WindowDaysForward int

	StoreBackend string
	RedisAddr    string
	RedisDB      int
	RedisPrefix  string

	// MQTTBroker empty disables the MQTT alert sink.
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	DefaultLocation kp.Location
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("config: no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getenvDuration("SYNC_INTERVAL", "3h"); err != nil {
		return nil, err
	}
	if cfg.NotifyCooldown, err = getenvDuration("NOTIFY_COOLDOWN", "6h"); err != nil {
		return nil, err
	}

	cfg.NOAABaseURL = os.Getenv("NOAA_BASE_URL")
	cfg.GeocoderBaseURL = os.Getenv("GEOCODER_BASE_URL")
	cfg.GeocoderUserAgent = getenvDefault("GEOCODER_USER_AGENT", "kp-index-aggregation/1.0")

	if cfg.WindowDaysBack, err = getenvInt("WINDOW_DAYS_BACK", kp.DefaultDaysBack); err != nil {
		return nil, err
	}
	if cfg.WindowDaysForward, err = getenvInt("WINDOW_DAYS_FORWARD", kp.DefaultDaysForward); err != nil {
		return nil, err
	}
	if cfg.WindowDaysBack < 0 || cfg.WindowDaysForward < 0 {
		return nil, fmt.Errorf("invalid day window: %d back, %d forward", cfg.WindowDaysBack, cfg.WindowDaysForward)
	}

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", BackendMemory))
	if cfg.StoreBackend != BackendMemory && cfg.StoreBackend != BackendRedis {
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q", cfg.StoreBackend)
	}
	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	if cfg.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.RedisPrefix = getenvDefault("REDIS_PREFIX", "kp:")

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "kp/alerts")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "kp-index-aggregation")

	cfg.DefaultLocation = kp.Location{
		DisplayName: getenvDefault("DEFAULT_LOCATION_NAME", kp.DefaultLocation.DisplayName),
		TimeZoneID:  getenvDefault("DEFAULT_TIMEZONE", kp.DefaultLocation.TimeZoneID),
	}
	if !kp.ValidZone(cfg.DefaultLocation.TimeZoneID) {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %q", cfg.DefaultLocation.TimeZoneID)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
