package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	for _, k := range []string{
		"QUILL_API_URL", "QUILL_REALTIME_KEY", "QUILL_REALTIME_CLUSTER",
		"QUILL_REALTIME_GRACE_WINDOW", "QUILL_SOUND_ENABLED", "QUILL_LOCALE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadConfig(filepath.Join(dir, "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("api_url: got %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.Realtime.GraceWindow.Duration != 5*time.Second {
		t.Errorf("grace window: got %v, want 5s", cfg.Realtime.GraceWindow)
	}
	if !cfg.Sound.Enabled {
		t.Error("sound should default to enabled")
	}
	if cfg.RealtimeEnabled() {
		t.Error("realtime should be disabled without an app key")
	}
	if filepath.Dir(cfg.StatePath()) != filepath.Join(dir, "data", "quill") {
		t.Errorf("unexpected state path %s", cfg.StatePath())
	}
}

func TestLoadConfigFileKeepsUnsetDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	data := `
api_url = 'https://blog.example.com/api/'

[realtime]
app_key = 'abc123'
grace_window = '250ms'
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIURL != "https://blog.example.com/api" {
		t.Errorf("trailing slash not trimmed: %q", cfg.APIURL)
	}
	if cfg.Realtime.AppKey != "abc123" || !cfg.RealtimeEnabled() {
		t.Errorf("app key not loaded: %+v", cfg.Realtime)
	}
	if cfg.Realtime.Cluster != DefaultRealtimeCluster {
		t.Errorf("cluster default lost: %q", cfg.Realtime.Cluster)
	}
	if cfg.Realtime.GraceWindow.Duration != 250*time.Millisecond {
		t.Errorf("grace window: got %v", cfg.Realtime.GraceWindow)
	}
	if !cfg.Sound.Enabled {
		t.Error("sound.enabled default lost when [sound] is absent")
	}
}

func TestZeroGraceWindowIsKept(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[realtime]\ngrace_window = '0s'\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Realtime.GraceWindow.Duration != 0 {
		t.Errorf("grace window: got %v, want 0", cfg.Realtime.GraceWindow)
	}
}

func TestNegativeGraceWindowFallsBack(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[realtime]\ngrace_window = '-1s'\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Realtime.GraceWindow.Duration != DefaultGraceWindow {
		t.Errorf("grace window: got %v, want %v", cfg.Realtime.GraceWindow, DefaultGraceWindow)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[realtime]\napp_key = 'from-file'\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUILL_REALTIME_KEY", "from-env")
	t.Setenv("QUILL_REALTIME_CLUSTER", "ap2")
	t.Setenv("QUILL_SOUND_ENABLED", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Realtime.AppKey != "from-env" {
		t.Errorf("app key: got %q, want from-env", cfg.Realtime.AppKey)
	}
	if cfg.Realtime.Cluster != "ap2" {
		t.Errorf("cluster: got %q, want ap2", cfg.Realtime.Cluster)
	}
	if cfg.Sound.Enabled {
		t.Error("QUILL_SOUND_ENABLED=false not applied")
	}
}

func TestDotEnvNextToConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("QUILL_API_URL=https://dotenv.example/api\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("QUILL_API_URL") })

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIURL != "https://dotenv.example/api" {
		t.Errorf("api_url from .env: got %q", cfg.APIURL)
	}
}

func TestSaveTemplateConfigRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.StateDir != cfg.StateDir {
		t.Errorf("state dir: got %q, want %q", loaded.StateDir, cfg.StateDir)
	}
	if loaded.Realtime.GraceWindow.Duration != 5*time.Second {
		t.Errorf("grace window: got %v", loaded.Realtime.GraceWindow)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("locale = 'en'\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("locale = 'es'\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-reloaded:
		if c.Locale != "es" {
			t.Errorf("locale after reload: got %q, want es", c.Locale)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
