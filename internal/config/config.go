package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mescon/Tickarr/internal/logger"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Port is the HTTP server listen port (default: 3095)
	Port string

	// BasePath is the URL base path for reverse proxy setups (default: "/")
	BasePath string

	// LogLevel controls logging verbosity: "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// DataDir holds the database and logs.
	// Default: /config in Docker, ./config next to the executable otherwise
	DataDir string

	// DatabasePath is the SQLite database file path (default: <DataDir>/tickarr.db)
	DatabasePath string

	// LogDir is the directory for log files (default: <DataDir>/logs)
	LogDir string

	// TickInterval is the wall-clock length of one countdown tick (default: 1s)
	TickInterval time.Duration

	// RetentionDays is how long timer events are kept (default: 30, 0 disables pruning)
	RetentionDays int

	// StoragePrefix namespaces every key in the key-value store (default: "tickarr_")
	StoragePrefix string

	// PresetsFile is an optional YAML or CSV file of named timer presets
	PresetsFile string

	// Presets are the named timers offered by the API, loaded from PresetsFile
	// or DefaultPresets when no file is configured.
	Presets []Preset

	// APIKey, when set, replaces the generated API key on first start
	APIKey string

	// EncryptionKey enables at-rest encryption of stored values when set
	EncryptionKey string

	// NotifyURLs are shoutrrr service URLs that receive timer notifications
	NotifyURLs []string

	// NotifyEvents limits which event types are sent (default: WarningTriggered, TimerCompleted)
	NotifyEvents []string

	// NotifyThrottle is the minimum gap between two notifications to the same URL (default: 0)
	NotifyThrottle time.Duration

	// NotifyFailureThreshold is the number of consecutive failures after which a URL is skipped (default: 5)
	NotifyFailureThreshold int

	// NotifyRetryAfter is how long a failing URL is skipped before it is tried again (default: 1m)
	NotifyRetryAfter time.Duration

	// CORSOrigin is a comma separated list of allowed origins, or "*"
	CORSOrigin string
}

var cfg *Config

// Load reads configuration from environment variables with sensible defaults.
// Should be called once at application startup.
func Load() *Config {
	dataDir := getEnvOrDefault("TICKARR_DATA_DIR", "")
	if dataDir == "" {
		if info, err := os.Stat("/config"); err == nil && info.IsDir() {
			dataDir = "/config"
		} else if execPath, err := os.Executable(); err == nil {
			dataDir = filepath.Join(filepath.Dir(execPath), "config")
		} else {
			dataDir = "./config"
		}
	}
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Errorf("Failed to create data directory %s: %v", dataDir, err)
	}

	dbPath := getEnvOrDefault("TICKARR_DATABASE_PATH", filepath.Join(dataDir, "tickarr.db"))
	logDir := filepath.Join(dataDir, "logs")

	cfg = &Config{
		Port:           getEnvOrDefault("TICKARR_PORT", "3095"),
		BasePath:       normalizeBasePath(getEnvOrDefault("TICKARR_BASE_PATH", "/")),
		LogLevel:       normalizeLogLevel(getEnvOrDefault("TICKARR_LOG_LEVEL", "info")),
		DataDir:        dataDir,
		DatabasePath:   dbPath,
		LogDir:         logDir,
		TickInterval:   getEnvDurationOrDefault("TICKARR_TICK_INTERVAL", time.Second),
		RetentionDays:  getEnvIntOrDefault("TICKARR_RETENTION_DAYS", 30),
		StoragePrefix:  getEnvOrDefault("TICKARR_STORAGE_PREFIX", "tickarr_"),
		PresetsFile:    getEnvOrDefault("TICKARR_PRESETS_FILE", ""),
		APIKey:         getEnvOrDefault("TICKARR_API_KEY", ""),
		EncryptionKey:  getEnvOrDefault("TICKARR_ENCRYPTION_KEY", ""),
		NotifyURLs:     getEnvListOrDefault("TICKARR_NOTIFY_URLS", nil),
		NotifyEvents:   getEnvListOrDefault("TICKARR_NOTIFY_EVENTS", []string{"WarningTriggered", "TimerCompleted"}),
		NotifyThrottle: getEnvDurationOrDefault("TICKARR_NOTIFY_THROTTLE", 0),

		NotifyFailureThreshold: getEnvIntOrDefault("TICKARR_NOTIFY_FAILURE_THRESHOLD", 5),
		NotifyRetryAfter:       getEnvDurationOrDefault("TICKARR_NOTIFY_RETRY_AFTER", time.Minute),

		CORSOrigin:     getEnvOrDefault("TICKARR_CORS_ORIGIN", ""),
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	cfg.Presets = DefaultPresets()
	if cfg.PresetsFile != "" {
		presets, err := LoadPresets(cfg.PresetsFile)
		if err != nil {
			logger.Errorf("Failed to load presets from %s, using defaults: %v", cfg.PresetsFile, err)
		} else {
			cfg.Presets = presets
		}
	}

	return cfg
}

// Get returns the current configuration. Panics if Load() hasn't been called.
func Get() *Config {
	if cfg == nil {
		panic("config.Load() must be called before config.Get()")
	}
	return cfg
}

// SetForTesting allows tests to set the global config without calling Load().
func SetForTesting(c *Config) {
	cfg = c
}

// NewTestConfig returns a minimal Config suitable for unit tests.
func NewTestConfig() *Config {
	return &Config{
		Port:          "8080",
		BasePath:      "/",
		LogLevel:      "debug",
		DataDir:       "/tmp/tickarr-test",
		DatabasePath:  "/tmp/tickarr-test/tickarr.db",
		LogDir:        "/tmp/tickarr-test/logs",
		TickInterval:  time.Second,
		RetentionDays: 30,
		StoragePrefix: "tickarr_",
		Presets:       DefaultPresets(),
		NotifyEvents:  []string{"WarningTriggered", "TimerCompleted"},
	}
}

// FlagOverrides holds command-line flag values that override environment variables.
type FlagOverrides struct {
	Port          *string
	BasePath      *string
	LogLevel      *string
	DataDir       *string
	DatabasePath  *string
	TickInterval  *time.Duration
	RetentionDays *int
	PresetsFile   *string
}

// ApplyFlags applies command-line flag overrides to the configuration.
// Nil pointers and zero values leave the loaded value in place.
func ApplyFlags(flags FlagOverrides) {
	if cfg == nil {
		return
	}

	if flags.Port != nil && *flags.Port != "" {
		cfg.Port = *flags.Port
	}
	if flags.BasePath != nil && *flags.BasePath != "" {
		cfg.BasePath = normalizeBasePath(*flags.BasePath)
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.LogLevel = normalizeLogLevel(*flags.LogLevel)
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.DataDir = *flags.DataDir
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
		if os.Getenv("TICKARR_DATABASE_PATH") == "" {
			cfg.DatabasePath = filepath.Join(cfg.DataDir, "tickarr.db")
		}
	}
	if flags.DatabasePath != nil && *flags.DatabasePath != "" {
		cfg.DatabasePath = *flags.DatabasePath
	}
	if flags.TickInterval != nil && *flags.TickInterval > 0 {
		cfg.TickInterval = *flags.TickInterval
	}
	if flags.RetentionDays != nil && *flags.RetentionDays >= 0 {
		cfg.RetentionDays = *flags.RetentionDays
	}
	if flags.PresetsFile != nil && *flags.PresetsFile != "" {
		cfg.PresetsFile = *flags.PresetsFile
		presets, err := LoadPresets(cfg.PresetsFile)
		if err != nil {
			logger.Errorf("Failed to load presets from %s: %v", cfg.PresetsFile, err)
		} else {
			cfg.Presets = presets
		}
	}
}

// normalizeBasePath ensures the path starts with / and has no trailing /.
func normalizeBasePath(basePath string) string {
	if basePath == "" || basePath == "/" {
		return "/"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimSuffix(basePath, "/")
}

func normalizeLogLevel(level string) string {
	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
		return level
	default:
		return "info"
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or the default if not set/invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go duration strings like "500ms", "1s", "5m".
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated variable, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
