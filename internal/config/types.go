// Package config resolves, parses, validates, and persists murmur
// configuration.
package config

// Config is the fully materialized runtime configuration used by murmur.
type Config struct {
	EngineURL      string
	ModelsDir      string
	ActiveModel    string
	LanguageMode   string
	Hotkey         string
	Audio          AudioConfig
	ErrorTimeoutMS int
	ReloadAttempts int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
