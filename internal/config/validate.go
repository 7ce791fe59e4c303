package config

import (
	"fmt"
	"strings"

	"github.com/murmurhq/murmur/internal/model"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	engineURL := strings.TrimSpace(cfg.EngineURL)
	if engineURL == "" {
		return nil, fmt.Errorf("engine_url must not be empty")
	}
	if !strings.HasPrefix(engineURL, "http://") && !strings.HasPrefix(engineURL, "https://") {
		return nil, fmt.Errorf("engine_url must be an http(s) URL, got %q", engineURL)
	}

	if _, err := model.Lookup(cfg.ActiveModel); err != nil {
		return nil, fmt.Errorf("active_model: %w", err)
	}
	if _, err := model.ParseLanguageMode(cfg.LanguageMode); err != nil {
		return nil, fmt.Errorf("language_mode: %w", err)
	}

	if strings.TrimSpace(cfg.Hotkey) == "" {
		return nil, fmt.Errorf("hotkey must not be empty")
	}
	if cfg.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("error_timeout_ms must be >= 0")
	}
	if cfg.ReloadAttempts <= 0 {
		return nil, fmt.Errorf("reload_attempts must be > 0")
	}

	if strings.TrimSpace(cfg.Audio.Input) == "" {
		warnings = append(warnings, Warning{Message: "audio.input is empty; using default source"})
	}

	return warnings, nil
}
