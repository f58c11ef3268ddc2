// Package config loads and holds all guardian configuration.
// Settings are layered: built-in defaults, then an optional .env file,
// then the config file (JSON or YAML, read through viper), then environment
// variables, which always win.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"privacy-guardian/internal/logger"
)

// DefaultFileName is looked up in the user's home directory when no
// explicit config path is given.
const DefaultFileName = ".privacy-guardian.json"

// Config holds the full guardian configuration.
type Config struct {
	// Remote classifier
	BackendURL       string        `json:"backendUrl" mapstructure:"backendUrl"`
	DetectTimeout    time.Duration `json:"detectTimeout" mapstructure:"detectTimeout"`
	RequestTimeout   time.Duration `json:"requestTimeout" mapstructure:"requestTimeout"`
	PingTimeout      time.Duration `json:"pingTimeout" mapstructure:"pingTimeout"`
	ScanTimeout      time.Duration `json:"scanTimeout" mapstructure:"scanTimeout"`
	AnonymizeRetries int           `json:"anonymizeRetries" mapstructure:"anonymizeRetries"`

	// In-memory results kept for repeat scans; 0 disables the cache.
	AnonymizeCacheSize int `json:"anonymizeCacheSize" mapstructure:"anonymizeCacheSize"`

	// Management API
	ManagementPort  int    `json:"managementPort" mapstructure:"managementPort"`
	BindAddress     string `json:"bindAddress" mapstructure:"bindAddress"`
	ManagementToken string `json:"managementToken" mapstructure:"managementToken"`

	// Persistence
	StoreBackend string `json:"storeBackend" mapstructure:"storeBackend"`
	StorePath    string `json:"storePath" mapstructure:"storePath"`

	// Page-side workflow
	ResumeDelay             time.Duration `json:"resumeDelay" mapstructure:"resumeDelay"`
	RewriteSettle           time.Duration `json:"rewriteSettle" mapstructure:"rewriteSettle"`
	MinHistoryMessageLength int           `json:"minHistoryMessageLength" mapstructure:"minHistoryMessageLength"`

	NotifyWebhookURL string `json:"notifyWebhookUrl" mapstructure:"notifyWebhookUrl"`
	LogLevel         string `json:"logLevel" mapstructure:"logLevel"`
}

// Load returns config with defaults overridden by .env, the config file at
// path (or the default file when path is empty) and env vars.
func Load(path string) *Config {
	cfg := defaults()
	// Best-effort: a missing .env is the normal case.
	_ = godotenv.Load()
	if path == "" {
		path = DefaultPath()
	}
	loadFile(cfg, path)
	loadEnv(cfg)
	return cfg
}

// DefaultPath returns $HOME/.privacy-guardian.json, or the bare file name
// when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

func defaults() *Config {
	return &Config{
		BackendURL:       "http://127.0.0.1:8000",
		DetectTimeout:    3 * time.Second,
		RequestTimeout:   15 * time.Second,
		PingTimeout:      3 * time.Second,
		ScanTimeout:      5 * time.Minute,
		AnonymizeRetries: 2,

		AnonymizeCacheSize: 512,

		ManagementPort: 8181,
		BindAddress:    "127.0.0.1",

		StoreBackend: "bbolt",
		StorePath:    "guardian.db",

		ResumeDelay:             150 * time.Millisecond,
		RewriteSettle:           100 * time.Millisecond,
		MinHistoryMessageLength: 10,

		LogLevel: "info",
	}
}

func loadFile(cfg *Config, path string) {
	log := logger.New("CONFIG", cfg.LogLevel)
	if _, err := os.Stat(path); err != nil {
		return // file is optional
	}
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		log.Warnf("load_file", "could not parse %s: %v", path, err)
		return
	}
	if err := v.Unmarshal(cfg); err != nil {
		log.Warnf("load_file", "could not decode %s: %v", path, err)
		return
	}
	log.Infof("load_file", "loaded %s", path)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("GUARDIAN_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	envDuration("DETECT_TIMEOUT", &cfg.DetectTimeout)
	envDuration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	envDuration("PING_TIMEOUT", &cfg.PingTimeout)
	envDuration("SCAN_TIMEOUT", &cfg.ScanTimeout)
	envDuration("RESUME_DELAY", &cfg.ResumeDelay)
	envDuration("REWRITE_SETTLE", &cfg.RewriteSettle)
	if v := os.Getenv("ANONYMIZE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AnonymizeRetries = n
		}
	}
	if v := os.Getenv("ANONYMIZE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AnonymizeCacheSize = n
		}
	}
	if v := os.Getenv("MANAGEMENT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ManagementPort = n
		}
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("MANAGEMENT_TOKEN"); v != "" {
		cfg.ManagementToken = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("MIN_HISTORY_MESSAGE_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MinHistoryMessageLength = n
		}
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.NotifyWebhookURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// envDuration overwrites *dst when the variable holds a valid positive duration.
func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}
