package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.BackendURL != "http://127.0.0.1:8000" {
		t.Errorf("BackendURL: got %s", cfg.BackendURL)
	}
	if cfg.DetectTimeout != 3*time.Second {
		t.Errorf("DetectTimeout: got %v, want 3s", cfg.DetectTimeout)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout: got %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.DetectTimeout >= cfg.RequestTimeout {
		t.Error("DetectTimeout must be shorter than the general RequestTimeout")
	}
	if cfg.PingTimeout != 3*time.Second {
		t.Errorf("PingTimeout: got %v", cfg.PingTimeout)
	}
	if cfg.ManagementPort != 8181 {
		t.Errorf("ManagementPort: got %d, want 8181", cfg.ManagementPort)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress: got %s", cfg.BindAddress)
	}
	if cfg.StoreBackend != "bbolt" {
		t.Errorf("StoreBackend: got %s", cfg.StoreBackend)
	}
	if cfg.MinHistoryMessageLength != 10 {
		t.Errorf("MinHistoryMessageLength: got %d", cfg.MinHistoryMessageLength)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.AnonymizeCacheSize != 512 {
		t.Errorf("AnonymizeCacheSize: got %d, want 512", cfg.AnonymizeCacheSize)
	}
}

func TestLoadEnv(t *testing.T) {
	cases := []struct {
		key   string
		value string
		check func(*Config) bool
	}{
		{"GUARDIAN_BACKEND_URL", "http://classifier:9000", func(c *Config) bool { return c.BackendURL == "http://classifier:9000" }},
		{"DETECT_TIMEOUT", "1500ms", func(c *Config) bool { return c.DetectTimeout == 1500*time.Millisecond }},
		{"REQUEST_TIMEOUT", "20s", func(c *Config) bool { return c.RequestTimeout == 20*time.Second }},
		{"ANONYMIZE_RETRIES", "0", func(c *Config) bool { return c.AnonymizeRetries == 0 }},
		{"ANONYMIZE_CACHE_SIZE", "0", func(c *Config) bool { return c.AnonymizeCacheSize == 0 }},
		{"MANAGEMENT_PORT", "9191", func(c *Config) bool { return c.ManagementPort == 9191 }},
		{"MANAGEMENT_TOKEN", "secret-token", func(c *Config) bool { return c.ManagementToken == "secret-token" }},
		{"STORE_BACKEND", "sqlite", func(c *Config) bool { return c.StoreBackend == "sqlite" }},
		{"STORE_PATH", "/var/lib/guardian.sqlite", func(c *Config) bool { return c.StorePath == "/var/lib/guardian.sqlite" }},
		{"NOTIFY_WEBHOOK_URL", "http://hooks.local/leaks", func(c *Config) bool { return c.NotifyWebhookURL == "http://hooks.local/leaks" }},
		{"LOG_LEVEL", "debug", func(c *Config) bool { return c.LogLevel == "debug" }},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			t.Setenv(c.key, c.value)
			cfg := defaults()
			loadEnv(cfg)
			if !c.check(cfg) {
				t.Errorf("%s=%s not applied: %+v", c.key, c.value, cfg)
			}
		})
	}
}

func TestLoadEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("MANAGEMENT_PORT", "not-a-number")
	t.Setenv("DETECT_TIMEOUT", "soon")
	t.Setenv("REQUEST_TIMEOUT", "-5s")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.ManagementPort != 8181 {
		t.Errorf("ManagementPort: got %d, want 8181", cfg.ManagementPort)
	}
	if cfg.DetectTimeout != 3*time.Second {
		t.Errorf("DetectTimeout: got %v, want 3s", cfg.DetectTimeout)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout: got %v, want 15s", cfg.RequestTimeout)
	}
}

func TestLoadFile_ValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.json")
	data, err := json.Marshal(map[string]any{
		"backendUrl":    "http://10.0.0.5:8000",
		"detectTimeout": "2s",
		"storeBackend":  "jsonfile",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, path)

	if cfg.BackendURL != "http://10.0.0.5:8000" {
		t.Errorf("BackendURL: got %s", cfg.BackendURL)
	}
	if cfg.DetectTimeout != 2*time.Second {
		t.Errorf("DetectTimeout: got %v", cfg.DetectTimeout)
	}
	if cfg.StoreBackend != "jsonfile" {
		t.Errorf("StoreBackend: got %s", cfg.StoreBackend)
	}
	// untouched keys keep their defaults
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout: got %v", cfg.RequestTimeout)
	}
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, "/nonexistent/path/config.json")
	if cfg.BackendURL != "http://127.0.0.1:8000" {
		t.Errorf("BackendURL changed unexpectedly: %s", cfg.BackendURL)
	}
}

func TestLoadFile_InvalidJSON_PreservesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{this is not json}"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := defaults()
	loadFile(cfg, path)
	if cfg.ManagementPort != 8181 {
		t.Errorf("ManagementPort changed on bad JSON: %d", cfg.ManagementPort)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.json")
	if err := os.WriteFile(path, []byte(`{"logLevel":"warn"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "error")

	cfg := Load(path)
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel: got %s, want env value error", cfg.LogLevel)
	}
}
