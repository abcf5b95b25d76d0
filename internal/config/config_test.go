// ABOUTME: Tests for gymtrack configuration and credential persistence.
// ABOUTME: Covers defaults, file and env overrides, validation, path expansion and the token store.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/gymtracker/internal/remote"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.ServerURL != "http://localhost:8000/api" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("SyncInterval = %s, want 30s", cfg.SyncInterval)
	}
	if cfg.BackoffFloor != time.Second || cfg.BackoffCeiling != time.Minute {
		t.Errorf("backoff = %s..%s, want 1s..1m", cfg.BackoffFloor, cfg.BackoffCeiling)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server_url: https://gym.example.com/api\nsync_interval: 2m\ndata_dir: ~/lifting\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GYMTRACK_BACKOFF_CEILING", "5m")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ServerURL != "https://gym.example.com/api" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Errorf("SyncInterval = %s, want 2m", cfg.SyncInterval)
	}
	if cfg.BackoffCeiling != 5*time.Minute {
		t.Errorf("BackoffCeiling = %s, want env override 5m", cfg.BackoffCeiling)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "lifting", "gymtrack.db"); cfg.DBPath() != want {
		t.Errorf("DBPath() = %q, want %q", cfg.DBPath(), want)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML config")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		ServerURL: "http://localhost:8000/api", SyncInterval: time.Second, BackoffFloor: time.Second,
		BackoffCeiling: time.Minute, ConnectivityInterval: time.Second, RequestTimeout: time.Second,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := base
	bad.ServerURL = "localhost:8000"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for URL without scheme")
	}

	bad = base
	bad.BackoffCeiling = 500 * time.Millisecond
	if err := bad.Validate(); err == nil {
		t.Error("expected error for ceiling below floor")
	}

	bad = base
	bad.SyncInterval = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestSaveWritesYAML(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "nonexistent"))

	_, v, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	v.Set("server_url", "https://saved.example.com/api")
	if err := Save(v, ""); err != nil {
		t.Fatalf("Save() should create directory: %v", err)
	}

	info, err := os.Stat(GetConfigPath())
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config perms = %o, want 600", perm)
	}

	cfg, _, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "https://saved.example.com/api" {
		t.Errorf("ServerURL = %q after reload", cfg.ServerURL)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	cases := map[string]string{
		"":              "",
		"/tmp/foo":      "/tmp/foo",
		"~":             home,
		"~/data/gym":    filepath.Join(home, "data/gym"),
		"data/gymtrack": "data/gymtrack",
	}
	for in, want := range cases {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gymtrack", "credentials.json")

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatal(err)
	}
	device := creds.DeviceID()
	if len(device) != 26 {
		t.Errorf("DeviceID() = %q, want a ULID", device)
	}
	if creds.LoggedIn() {
		t.Error("fresh credentials should not be logged in")
	}

	if err := creds.SetTokens("access", "refresh"); err != nil {
		t.Fatal(err)
	}
	if err := creds.SetLogin("http://localhost:8000/api", "user-1"); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials perms = %o, want 600", perm)
	}

	reloaded, err := LoadCredentials(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.AccessToken() != "access" || reloaded.RefreshToken() != "refresh" {
		t.Errorf("tokens not persisted: %q %q", reloaded.AccessToken(), reloaded.RefreshToken())
	}
	if reloaded.UserID() != "user-1" || !reloaded.LoggedIn() {
		t.Errorf("login not persisted: %q", reloaded.UserID())
	}
	if reloaded.DeviceID() != device {
		t.Errorf("DeviceID changed across reload: %q != %q", reloaded.DeviceID(), device)
	}

	if err := reloaded.ClearTokens(); err != nil {
		t.Fatal(err)
	}
	cleared, _ := LoadCredentials(path)
	if cleared.AccessToken() != "" || cleared.UserID() != "" {
		t.Error("ClearTokens should drop tokens and user id")
	}
	if cleared.DeviceID() != device {
		t.Error("ClearTokens should keep the device id")
	}
}

func TestCredentialsIsTokenStore(t *testing.T) {
	var _ remote.TokenStore = (*Credentials)(nil)
}
