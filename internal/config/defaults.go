package config

// Default returns the canonical runtime configuration used when no file is
// present. An empty ModelsDir resolves through DataDir at startup.
func Default() Config {
	return Config{
		EngineURL:    "http://127.0.0.1:8771",
		ModelsDir:    "",
		ActiveModel:  "base",
		LanguageMode: "auto",
		Hotkey:       "ctrl+shift+space",
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		ErrorTimeoutMS: 5000,
		ReloadAttempts: 3,
	}
}
