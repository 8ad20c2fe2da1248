package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

// ErrMissingGitHubToken is returned by RequirePublishing when no token is set.
var ErrMissingGitHubToken = errors.New("GITHUB_TOKEN is required to publish (use --local-only to skip uploads)")

var validate = validator.New()

type AppConfig struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel slog.Level

	// Earth Engine credentials and client-side limits.
	EEServiceAccount    string  `validate:"required,email"`
	EEKeyFile           string  `validate:"required"`
	EEProject           string  // empty means the key file's project_id
	EERequestsPerSecond float64 `validate:"gt=0"`
	EEMaxRetries        int     `validate:"gte=0,lte=10"`
	EEInitialBackoff    time.Duration
	EEMaxBackoff        time.Duration

	GitHubToken  string
	GitHubRepo   string `validate:"required,contains=/"`
	GitHubBranch string

	OutDir      string `validate:"required"`
	HistoryPath string `validate:"required"`
	HistoryMax  int    `validate:"gte=1"`

	SiteName    string  `validate:"required"`
	SiteLat     float64 `validate:"gte=-90,lte=90"`
	SiteLon     float64 `validate:"gte=-180,lte=180"`
	SiteBufferM float64 `validate:"gt=0"`
	ScaleM      float64 `validate:"gt=0"`

	RunTimeout time.Duration `validate:"gt=0"`

	// FetchInterval controls how often serve mode runs; FetchCron overrides it.
	FetchInterval time.Duration `validate:"gt=0"`
	FetchCron     string

	// In-memory report retention for serve mode.
	StoreMaxReports int           `validate:"gte=0"` // 0 = unlimited
	StoreMaxAge     time.Duration `validate:"gte=0"` // 0 = unlimited

	Port string `validate:"required,numeric"`

	MQTTBroker   string
	MQTTTopic    string `validate:"required_with=MQTTBroker"`
	MQTTClientID string `validate:"required_with=MQTTBroker"`

	// EnvFileErr is why .env was not loaded; nil when it was.
	EnvFileErr error
}

// Load reads .env if present, then the environment with sensible defaults.
func Load() (*AppConfig, error) {
	envErr := godotenv.Load()
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.EnvFileErr = envErr
	return cfg, nil
}

// FromEnv builds and validates the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	cfg.EEServiceAccount = getenvDefault("EE_SERVICE_ACCOUNT", "")
	cfg.EEKeyFile = getenvDefault("EE_KEY_FILE", "ee-key.json")
	cfg.EEProject = getenvDefault("EE_PROJECT", "")
	if cfg.EERequestsPerSecond, err = getenvFloat("EE_REQUESTS_PER_SECOND", 2); err != nil {
		return nil, err
	}
	if cfg.EEMaxRetries, err = getenvInt("EE_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.EEInitialBackoff, err = getenvDuration("EE_INITIAL_BACKOFF", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.EEMaxBackoff, err = getenvDuration("EE_MAX_BACKOFF", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.GitHubToken = getenvDefault("GITHUB_TOKEN", "")
	cfg.GitHubRepo = getenvDefault("GITHUB_REPO", "Anfu4354/pm-monitor-data")
	cfg.GitHubBranch = getenvDefault("GITHUB_BRANCH", "")

	cfg.OutDir = getenvDefault("OUT_DIR", ".")
	cfg.HistoryPath = getenvDefault("HISTORY_PATH", filepath.Join(cfg.OutDir, monitor.HistoryFile))
	if cfg.HistoryMax, err = getenvInt("HISTORY_MAX", 200); err != nil {
		return nil, err
	}

	cfg.SiteName = getenvDefault("SITE_NAME", monitor.DefaultSite.Name)
	if cfg.SiteLat, err = getenvFloat("SITE_LAT", monitor.DefaultSite.Lat); err != nil {
		return nil, err
	}
	if cfg.SiteLon, err = getenvFloat("SITE_LON", monitor.DefaultSite.Lon); err != nil {
		return nil, err
	}
	if cfg.SiteBufferM, err = getenvFloat("SITE_BUFFER_M", monitor.DefaultSite.BufferM); err != nil {
		return nil, err
	}
	if cfg.ScaleM, err = getenvFloat("REDUCE_SCALE_M", monitor.DefaultScale); err != nil {
		return nil, err
	}

	if cfg.RunTimeout, err = getenvDuration("RUN_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	cfg.FetchCron = getenvDefault("FETCH_CRON", "")

	// Two days of hourly runs.
	if cfg.StoreMaxReports, err = getenvInt("STORE_MAX_REPORTS", 48); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 72*time.Hour); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.MQTTBroker = getenvDefault("MQTT_BROKER", "")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "pm-monitor/current")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "pm-monitor")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Site returns the monitored location.
func (c *AppConfig) Site() monitor.Site {
	return monitor.Site{
		Name:    c.SiteName,
		Lat:     c.SiteLat,
		Lon:     c.SiteLon,
		BufferM: c.SiteBufferM,
	}
}

// RequirePublishing checks the settings needed to upload to the repository.
func (c *AppConfig) RequirePublishing() error {
	if c.GitHubToken == "" {
		return ErrMissingGitHubToken
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
