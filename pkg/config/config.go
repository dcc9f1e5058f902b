package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Build-time defaults, set with
// -ldflags "-X github.com/rubiojr/quill/pkg/config.DefaultRealtimeKey=..."
var (
	DefaultAPIURL          = "http://localhost:3000/api"
	DefaultRealtimeKey     = ""
	DefaultRealtimeCluster = "eu"
)

const DefaultGraceWindow = 5 * time.Second

type Config struct {
	APIURL   string         `toml:"api_url" env:"QUILL_API_URL"`
	StateDir string         `toml:"state_dir" env:"QUILL_STATE_DIR"`
	Locale   string         `toml:"locale" env:"QUILL_LOCALE"`
	Realtime RealtimeConfig `toml:"realtime"`
	Media    MediaConfig    `toml:"media"`
	Sound    SoundConfig    `toml:"sound"`
}

type RealtimeConfig struct {
	AppKey  string `toml:"app_key" env:"QUILL_REALTIME_KEY"`
	Cluster string `toml:"cluster" env:"QUILL_REALTIME_CLUSTER"`
	// Host overrides the cluster derived host (self-hosted, tests).
	Host        string   `toml:"host,omitempty" env:"QUILL_REALTIME_HOST"`
	Insecure    bool     `toml:"insecure,omitempty" env:"QUILL_REALTIME_INSECURE"`
	GraceWindow Duration `toml:"grace_window" env:"QUILL_REALTIME_GRACE_WINDOW"`
}

type MediaConfig struct {
	CloudName    string `toml:"cloud_name" env:"QUILL_MEDIA_CLOUD_NAME"`
	UploadPreset string `toml:"upload_preset" env:"QUILL_MEDIA_UPLOAD_PRESET"`
	UploadURL    string `toml:"upload_url,omitempty" env:"QUILL_MEDIA_UPLOAD_URL"`
}

type SoundConfig struct {
	Enabled bool   `toml:"enabled" env:"QUILL_SOUND_ENABLED"`
	Player  string `toml:"player,omitempty" env:"QUILL_SOUND_PLAYER"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// RealtimeEnabled reports whether an app key is available.
func (c *Config) RealtimeEnabled() bool {
	return strings.TrimSpace(c.Realtime.AppKey) != ""
}

func GetDefaultConfig() (*Config, error) {
	stateDir, err := GetDefaultStateDir()
	if err != nil {
		return nil, fmt.Errorf("getting default state directory: %w", err)
	}
	return &Config{
		APIURL:   DefaultAPIURL,
		StateDir: stateDir,
		Locale:   "en",
		Realtime: RealtimeConfig{
			AppKey:      DefaultRealtimeKey,
			Cluster:     DefaultRealtimeCluster,
			GraceWindow: Duration{DefaultGraceWindow},
		},
		Sound: SoundConfig{Enabled: true},
	}, nil
}

// LoadConfig reads configPath on top of the defaults, then applies .env
// files and QUILL_* environment variables. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg, err := GetDefaultConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	loadEnvFiles(filepath.Join(filepath.Dir(configPath), ".env"), ".env")
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.StateDir == "" {
		if cfg.StateDir, err = GetDefaultStateDir(); err != nil {
			return nil, fmt.Errorf("getting default state directory: %w", err)
		}
	}
	if cfg.Realtime.GraceWindow.Duration < 0 {
		cfg.Realtime.GraceWindow = Duration{DefaultGraceWindow}
	}
	if cfg.Realtime.Cluster == "" {
		cfg.Realtime.Cluster = DefaultRealtimeCluster
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}

// loadEnvFiles loads the files that exist. Variables already present in the
// process environment win.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0600)
}

// SaveTemplateConfig writes the commented sample with the real state dir.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	stateDir := c.StateDir
	if stateDir == "" {
		var err error
		if stateDir, err = GetDefaultStateDir(); err != nil {
			return fmt.Errorf("getting default state directory: %w", err)
		}
	}
	template := strings.Replace(configTemplate, "/home/user/.local/share/quill", stateDir, 1)
	return os.WriteFile(configPath, []byte(template), 0600)
}

// StatePath is the database holding the token and locale preference.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.db")
}

// GetDefaultStateDir returns $XDG_DATA_HOME/quill, creating it if needed.
func GetDefaultStateDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "quill")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/quill, creating it if needed.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "quill")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
