package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setRequired sets the two settings Load cannot default.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ONEDRIVE_FILE_URL", "https://1drv.ms/x/s!AbCdEf?e=tok3n")
	t.Setenv("DASHBOARD_PASSWORD", "hunter2")
}

func validConfig() *Config {
	return &Config{
		Sync:     SyncConfig{FileURL: "https://1drv.ms/x/s!abc", IntervalSeconds: 3600, QuantitySheet: "수량 기준"},
		Fetch:    FetchConfig{Timeout: time.Minute, MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 30 * time.Second, MaxBytes: 1},
		Server:   ServerConfig{Port: 8000, ShutdownTimeout: time.Second, RequestTimeout: time.Minute},
		Rate:     RateLimitConfig{Enabled: true, RequestsPerMinute: 120, RefreshLimit: 6},
		Security: SecurityConfig{Password: "pw"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Sync.Interval() != time.Hour {
		t.Errorf("Sync.Interval() = %v, want 1h", cfg.Sync.Interval())
	}
	if cfg.Sync.QuantitySheet != "수량 기준" || cfg.Sync.StyleSheet != "스타일수 기준" {
		t.Errorf("sheets = %q / %q, want Korean defaults", cfg.Sync.QuantitySheet, cfg.Sync.StyleSheet)
	}
	if cfg.Fetch.Timeout != 60*time.Second || cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.MaxBytes != 52428800 {
		t.Errorf("Fetch = %+v, want 60s / 3 / 50MB", cfg.Fetch)
	}
	if cfg.Rate.RequestsPerMinute != 120 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 120)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SYNC_INTERVAL", "60")
	t.Setenv("SUMMARY_CURRENT_WEEK", "48")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Sync.Interval() != time.Minute {
		t.Errorf("Sync.Interval() = %v, want 1m", cfg.Sync.Interval())
	}
	if cfg.Sync.CurrentWeek != 48 {
		t.Errorf("Sync.CurrentWeek = %d, want 48", cfg.Sync.CurrentWeek)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("ONEDRIVE_FILE_URL", "")
	t.Setenv("SHARE_URL", "https://drive.google.com/file/d/abc/view")
	t.Setenv("DASHBOARD_PASSWORD", "pw")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sync.FileURL != "https://drive.google.com/file/d/abc/view" {
		t.Errorf("Sync.FileURL = %q", cfg.Sync.FileURL)
	}
}

func TestLoad_EmptyStyleSheetDisables(t *testing.T) {
	setRequired(t)
	t.Setenv("SUMMARY_STYLE_SHEET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.StyleSheet != "" {
		t.Errorf("Sync.StyleSheet = %q, want empty", cfg.Sync.StyleSheet)
	}
}

func TestLoad_MissingRequiredReportsAll(t *testing.T) {
	t.Setenv("ONEDRIVE_FILE_URL", "")
	t.Setenv("SHARE_URL", "")
	t.Setenv("DASHBOARD_PASSWORD", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing required settings")
	}
	for _, want := range []string{"ONEDRIVE_FILE_URL", "DASHBOARD_PASSWORD"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestLoad_Duration(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("FETCH_BASE_BACKOFF", "1m30s")
	t.Setenv("FETCH_MAX_BACKOFF", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Fetch.BaseBackoff != 90*time.Second {
		t.Errorf("Fetch.BaseBackoff = %v, want %v", cfg.Fetch.BaseBackoff, 90*time.Second)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	setRequired(t)
	t.Setenv("FETCH_TIMEOUT", "soon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "FETCH_TIMEOUT") {
		t.Errorf("Load() error = %v, want mention of FETCH_TIMEOUT", err)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(expected) {
		t.Fatalf("TrustedProxies length = %d, want %d", len(cfg.Security.TrustedProxies), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.TrustedProxies[i] != v {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], v)
		}
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proddash.yaml")
	yml := `
sync:
  file_url: https://1drv.ms/x/s!fromfile
  interval_seconds: 600
  style_sheet: ""
fetch:
  timeout: 20s
server:
  port: 7000
security:
  password: from-file
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ONEDRIVE_FILE_URL", "")
	t.Setenv("SHARE_URL", "")
	t.Setenv("DASHBOARD_PASSWORD", "")
	t.Setenv("SERVER_PORT", "7100") // env wins over the file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sync.FileURL != "https://1drv.ms/x/s!fromfile" {
		t.Errorf("Sync.FileURL = %q, want value from file", cfg.Sync.FileURL)
	}
	if cfg.Sync.Interval() != 10*time.Minute {
		t.Errorf("Sync.Interval() = %v, want 10m", cfg.Sync.Interval())
	}
	if cfg.Sync.StyleSheet != "" {
		t.Errorf("Sync.StyleSheet = %q, want disabled by file", cfg.Sync.StyleSheet)
	}
	if cfg.Fetch.Timeout != 20*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 20s", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.MaxAttempts != 3 {
		t.Errorf("Fetch.MaxAttempts = %d, want default 3", cfg.Fetch.MaxAttempts)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want env override 7100", cfg.Server.Port)
	}
	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
}

func TestLoad_YAMLUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  file_ur1: typo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	setRequired(t)
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("Load() accepted an unknown YAML key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		mention string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"zero interval", func(c *Config) { c.Sync.IntervalSeconds = 0 }, "SYNC_INTERVAL"},
		{"bad scheme", func(c *Config) { c.Sync.FileURL = "ftp://host/file.xlsx" }, "ONEDRIVE_FILE_URL"},
		{"week out of range", func(c *Config) { c.Sync.CurrentWeek = 61 }, "SUMMARY_CURRENT_WEEK"},
		{"backoff order", func(c *Config) { c.Fetch.MaxBackoff = time.Millisecond }, "FETCH_MAX_BACKOFF"},
		{"no password", func(c *Config) { c.Security.Password = "" }, "DASHBOARD_PASSWORD"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("validConfig().Validate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error should mention %s: %v", tt.mention, err)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8000, ":8000"},
		{"0.0.0.0", 8000, "0.0.0.0:8000"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.FileURL = "https://1drv.ms/x/s!SeCrEtToKeN?e=abc123"
	cfg.Security.Password = "hunter2"

	str := cfg.String()
	for _, secret := range []string{"SeCrEtToKeN", "abc123", "hunter2"} {
		if strings.Contains(str, secret) {
			t.Errorf("String() leaks %q: %s", secret, str)
		}
	}
	if !strings.Contains(str, "https://1drv.ms/[MASKED]") {
		t.Errorf("String() should keep the share host: %s", str)
	}
}
