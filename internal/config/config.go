package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".kintales"
	envPrefix  = "KT"

	SecretsBackendAuto = "auto"
	SecretsBackendPass = "pass"
	SecretsBackendFile = "file"
)

type Config struct {
	API       APIConfig
	Realtime  RealtimeConfig
	Secrets   SecretsConfig
	PrefsPath string
	LogLevel  string
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RealtimeConfig struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
}

type SecretsConfig struct {
	Backend string
	Dir     string
}

// Load reads ~/.kintales/config.toml when present and overlays KT_* environment
// variables, e.g. KT_API_BASE_URL for api.base_url.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	root := filepath.Join(homeDir, configDir)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(root)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("realtime.url", "")
	v.SetDefault("realtime.reconnect_attempts", 10)
	v.SetDefault("realtime.reconnect_delay", time.Second)
	v.SetDefault("realtime.reconnect_delay_max", 10*time.Second)
	v.SetDefault("secrets.backend", SecretsBackendAuto)
	v.SetDefault("secrets.dir", filepath.Join(root, "secrets"))
	v.SetDefault("preferences.path", filepath.Join(root, "preferences.toml"))
	v.SetDefault("log.level", "warn")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Realtime: RealtimeConfig{
			URL:               v.GetString("realtime.url"),
			ReconnectAttempts: v.GetInt("realtime.reconnect_attempts"),
			ReconnectDelay:    v.GetDuration("realtime.reconnect_delay"),
			ReconnectDelayMax: v.GetDuration("realtime.reconnect_delay_max"),
		},
		Secrets: SecretsConfig{
			Backend: strings.ToLower(v.GetString("secrets.backend")),
			Dir:     v.GetString("secrets.dir"),
		},
		PrefsPath: v.GetString("preferences.path"),
		LogLevel:  v.GetString("log.level"),
	}

	if cfg.Realtime.URL == "" {
		derived, err := RealtimeURLFromAPI(cfg.API.BaseURL)
		if err != nil {
			return Config{}, err
		}
		cfg.Realtime.URL = derived
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RealtimeURLFromAPI maps http(s)://host to ws(s)://host/ws.
func RealtimeURLFromAPI(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", errors.New("api base url must use http or https")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/ws"

	return parsed.String(), nil
}

func (c Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api base url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.Realtime.ReconnectAttempts <= 0 {
		return errors.New("realtime reconnect attempts must be positive")
	}
	if c.Realtime.ReconnectDelay <= 0 || c.Realtime.ReconnectDelayMax < c.Realtime.ReconnectDelay {
		return fmt.Errorf("invalid realtime reconnect delays %s..%s", c.Realtime.ReconnectDelay, c.Realtime.ReconnectDelayMax)
	}
	switch c.Secrets.Backend {
	case SecretsBackendAuto, SecretsBackendPass, SecretsBackendFile:
	default:
		return fmt.Errorf("unsupported secrets backend %q", c.Secrets.Backend)
	}

	return nil
}
