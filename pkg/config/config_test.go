package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Backend.BaseURL)
	assert.Equal(t, "file", cfg.Backend.UploadField)
	assert.Equal(t, "sessionId", cfg.Storage.SessionKey)
	assert.Equal(t, 60*time.Second, cfg.BackendTimeout())
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":{"base_url":"http://file:1","upload_field":"file"}}`), 0644))
	t.Setenv("CHATBOT_BACKEND_BASE_URL", "http://env:2")
	t.Setenv("CHATBOT_BACKEND_UPLOAD_FIELD", "image")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.Backend.BaseURL)
	assert.Equal(t, "image", cfg.Backend.UploadField)
}

func TestLoadConfigFormats(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[backend]\nbase_url = \"http://toml:1\"\nupload_field = \"file\"\n"), 0644))
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("storage:\n  driver: memory\n  session_key: sid\n"), 0644))

	cfg, err := LoadConfig(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "http://toml:1", cfg.Backend.BaseURL)

	cfg, err = LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "sid", cfg.Storage.SessionKey)
}

func TestLoadConfigFromInlineJSON(t *testing.T) {
	t.Setenv("CHATBOT_CONFIG_JSON", `{"webchat":{"host":"0.0.0.0","port":9000}}`)

	cfg, err := LoadConfig("ignored.json")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.WebChatAddr())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.UploadField = "attachment"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Storage.Driver = "redis"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.WebChat.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Backend.BaseURL = "http://saved:5000"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved:5000", loaded.Backend.BaseURL)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, home+"/.chatbot/x", expandHome("~/.chatbot/x"))
	assert.Equal(t, "/abs", expandHome("/abs"))
	assert.Equal(t, "", expandHome(""))
}
