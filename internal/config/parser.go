package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads key = value configuration content over base. Unknown keys and
// unparseable values become warnings, not errors, so an old binary keeps
// running against a newer file.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	for i, rawLine := range strings.Split(content, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			warnings = append(warnings, Warning{Line: lineNo, Message: fmt.Sprintf("ignoring line without '=': %q", line)})
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "engine_url":
			cfg.EngineURL = value
		case "models_dir":
			cfg.ModelsDir = value
		case "active_model":
			cfg.ActiveModel = value
		case "language_mode":
			cfg.LanguageMode = value
		case "hotkey":
			cfg.Hotkey = value
		case "audio.input":
			cfg.Audio.Input = value
		case "audio.fallback":
			cfg.Audio.Fallback = value
		case "error_timeout_ms":
			parsed, err := strconv.Atoi(value)
			if err != nil {
				warnings = append(warnings, Warning{Line: lineNo, Message: fmt.Sprintf("error_timeout_ms %q is not an integer; keeping %d", value, cfg.ErrorTimeoutMS)})
				continue
			}
			cfg.ErrorTimeoutMS = parsed
		case "reload_attempts":
			parsed, err := strconv.Atoi(value)
			if err != nil {
				warnings = append(warnings, Warning{Line: lineNo, Message: fmt.Sprintf("reload_attempts %q is not an integer; keeping %d", value, cfg.ReloadAttempts)})
				continue
			}
			cfg.ReloadAttempts = parsed
		default:
			warnings = append(warnings, Warning{Line: lineNo, Message: fmt.Sprintf("unknown key %q", key)})
		}
	}

	validateWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validateWarnings...), nil
}

// Render writes cfg in the same key = value format Parse reads.
func Render(cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "engine_url = %s\n", cfg.EngineURL)
	if cfg.ModelsDir != "" {
		fmt.Fprintf(&b, "models_dir = %s\n", cfg.ModelsDir)
	}
	fmt.Fprintf(&b, "active_model = %s\n", cfg.ActiveModel)
	fmt.Fprintf(&b, "language_mode = %s\n", cfg.LanguageMode)
	fmt.Fprintf(&b, "hotkey = %s\n", cfg.Hotkey)
	fmt.Fprintf(&b, "audio.input = %s\n", cfg.Audio.Input)
	fmt.Fprintf(&b, "audio.fallback = %s\n", cfg.Audio.Fallback)
	fmt.Fprintf(&b, "error_timeout_ms = %d\n", cfg.ErrorTimeoutMS)
	fmt.Fprintf(&b, "reload_attempts = %d\n", cfg.ReloadAttempts)
	return b.String()
}
