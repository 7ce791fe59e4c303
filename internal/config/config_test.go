package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEmptyContentKeepsDefaults(t *testing.T) {
	cfg, warnings, err := Parse("", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Empty(t, warnings)
}

func TestParseOverridesAndComments(t *testing.T) {
	content := `
# dictation settings
engine_url = http://127.0.0.1:9999
active_model = small
language_mode = pinned:de
hotkey = super+z
audio.input = usb-headset
error_timeout_ms = 3000
`
	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "http://127.0.0.1:9999", cfg.EngineURL)
	require.Equal(t, "small", cfg.ActiveModel)
	require.Equal(t, "pinned:de", cfg.LanguageMode)
	require.Equal(t, "super+z", cfg.Hotkey)
	require.Equal(t, "usb-headset", cfg.Audio.Input)
	require.Equal(t, "default", cfg.Audio.Fallback)
	require.Equal(t, 3000, cfg.ErrorTimeoutMS)
}

func TestParseWarnsOnUnknownAndMalformed(t *testing.T) {
	content := `
unknown_key = 1
not a key value line
error_timeout_ms = soon
`
	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Equal(t, 2, warnings[0].Line)
	require.Contains(t, warnings[0].Message, "unknown key")
	require.Contains(t, warnings[1].Message, "without '='")
	require.Contains(t, warnings[2].Message, "not an integer")
	require.Equal(t, Default().ErrorTimeoutMS, cfg.ErrorTimeoutMS)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	_, _, err := Parse("active_model = gigantic\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "active_model")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty engine url", mutate: func(c *Config) { c.EngineURL = "" }, wantErr: "engine_url"},
		{name: "non-http engine url", mutate: func(c *Config) { c.EngineURL = "localhost:8771" }, wantErr: "engine_url"},
		{name: "unknown model", mutate: func(c *Config) { c.ActiveModel = "turbo" }, wantErr: "active_model"},
		{name: "bad language mode", mutate: func(c *Config) { c.LanguageMode = "english" }, wantErr: "language_mode"},
		{name: "empty hotkey", mutate: func(c *Config) { c.Hotkey = " " }, wantErr: "hotkey"},
		{name: "negative timeout", mutate: func(c *Config) { c.ErrorTimeoutMS = -1 }, wantErr: "error_timeout_ms"},
		{name: "zero reload attempts", mutate: func(c *Config) { c.ReloadAttempts = 0 }, wantErr: "reload_attempts"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRenderRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.ActiveModel = "tiny"
	cfg.LanguageMode = "en"
	cfg.ModelsDir = "/srv/models"
	cfg.ErrorTimeoutMS = 2500

	parsed, warnings, err := Parse(Render(cfg), Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, cfg, parsed)
}

func TestResolvePathPrefersXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-config/murmur/config.conf", path)

	explicit, err := ResolvePath("/etc/murmur.conf")
	require.NoError(t, err)
	require.Equal(t, "/etc/murmur.conf", explicit)
}

func TestDataDirPrefersXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := DataDir()
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-data/murmur/models", dir)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.conf")
	loaded, err := Load(path)
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
}

func TestStoreUpdatePersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "murmur", "config.conf")
	store := NewStore(path, Default())
	sub := store.Subscribe()

	updated, err := store.Update(func(c *Config) {
		c.ActiveModel = "small"
	})
	require.NoError(t, err)
	require.Equal(t, "small", updated.ActiveModel)
	require.Equal(t, "small", store.Get().ActiveModel)

	select {
	case notified := <-sub:
		require.Equal(t, "small", notified.ActiveModel)
	default:
		t.Fatal("subscriber not notified")
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "small", loaded.Config.ActiveModel)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestStoreUpdateRejectsInvalidMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.conf")
	store := NewStore(path, Default())

	_, err := store.Update(func(c *Config) {
		c.ActiveModel = "nonexistent"
	})
	require.Error(t, err)
	require.Equal(t, "base", store.Get().ActiveModel)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
