package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend BackendConfig `json:"backend" toml:"backend" yaml:"backend"`
	Storage StorageConfig `json:"storage" toml:"storage" yaml:"storage"`
	WebChat WebChatConfig `json:"webchat" toml:"webchat" yaml:"webchat"`
	Log     LogConfig     `json:"log" toml:"log" yaml:"log"`
	mu      sync.RWMutex
}

// BackendConfig points the widget at the chatbot HTTP API.
type BackendConfig struct {
	BaseURL string `json:"base_url" toml:"base_url" yaml:"base_url" env:"CHATBOT_BACKEND_BASE_URL"`
	// UploadField is the multipart field carrying the file. Older backends expect "image".
	UploadField    string `json:"upload_field" toml:"upload_field" yaml:"upload_field" env:"CHATBOT_BACKEND_UPLOAD_FIELD"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" yaml:"timeout_seconds" env:"CHATBOT_BACKEND_TIMEOUT_SECONDS"`
}

type StorageConfig struct {
	Driver     string `json:"driver" toml:"driver" yaml:"driver" env:"CHATBOT_STORAGE_DRIVER"`
	Path       string `json:"path" toml:"path" yaml:"path" env:"CHATBOT_STORAGE_PATH"`
	SessionKey string `json:"session_key" toml:"session_key" yaml:"session_key" env:"CHATBOT_STORAGE_SESSION_KEY"`
}

type WebChatConfig struct {
	Host         string   `json:"host" toml:"host" yaml:"host" env:"CHATBOT_WEBCHAT_HOST"`
	Port         int      `json:"port" toml:"port" yaml:"port" env:"CHATBOT_WEBCHAT_PORT"`
	Username     string   `json:"username" toml:"username" yaml:"username" env:"CHATBOT_WEBCHAT_USERNAME"`
	Password     string   `json:"password" toml:"password" yaml:"password" env:"CHATBOT_WEBCHAT_PASSWORD"`
	AllowOrigins []string `json:"allow_origins" toml:"allow_origins" yaml:"allow_origins" env:"CHATBOT_WEBCHAT_ALLOW_ORIGINS"`
}

type LogConfig struct {
	Level string `json:"level" toml:"level" yaml:"level" env:"CHATBOT_LOG_LEVEL"`
	JSON  bool   `json:"json" toml:"json" yaml:"json" env:"CHATBOT_LOG_JSON"`
	File  string `json:"file" toml:"file" yaml:"file" env:"CHATBOT_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:5000",
			UploadField:    "file",
			TimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			Driver:     "file",
			Path:       "~/.chatbot/storage.json",
			SessionKey: "sessionId",
		},
		WebChat: WebChatConfig{
			Host:         "127.0.0.1",
			Port:         18800,
			AllowOrigins: []string{},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is where the CLI looks for a config file when none is given.
func DefaultPath() string {
	return expandHome("~/.chatbot/config.json")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Support full config from env var (for containers)
	if cfgJSON := os.Getenv("CHATBOT_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing CHATBOT_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields every front-end relies on.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url cannot be empty")
	}
	switch c.Backend.UploadField {
	case "file", "image":
	default:
		return fmt.Errorf("backend.upload_field must be \"file\" or \"image\", got %q", c.Backend.UploadField)
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path cannot be empty for driver %s", c.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.SessionKey == "" {
		return fmt.Errorf("storage.session_key cannot be empty")
	}
	if c.WebChat.Port <= 0 || c.WebChat.Port > 65535 {
		return fmt.Errorf("webchat.port out of range: %d", c.WebChat.Port)
	}
	return nil
}

func (c *Config) BackendTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Backend.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) StoragePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Storage.Path)
}

func (c *Config) LogFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Log.File)
}

func (c *Config) WebChatAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.WebChat.Host, c.WebChat.Port)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
