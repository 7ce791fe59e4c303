// Package doctor runs runtime readiness diagnostics for config, audio,
// models, permissions, and the recognition engine.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/murmurhq/murmur/internal/audio"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/engine"
	"github.com/murmurhq/murmur/internal/hotkey"
	"github.com/murmurhq/murmur/internal/model"
	"github.com/murmurhq/murmur/internal/permission"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Probes holds the live dependencies behind each check. Nil fields fall
// back to the real system probes.
type Probes struct {
	Devices       func() ([]audio.Device, error)
	EngineHealthy func(ctx context.Context) error
	Permissions   func() permission.Snapshot
}

func (p Probes) withDefaults(cfg config.Config) Probes {
	if p.Devices == nil {
		backend := &audio.PulseBackend{}
		p.Devices = backend.Devices
	}
	if p.EngineHealthy == nil {
		client := engine.New(engine.Config{BaseURL: cfg.EngineURL})
		p.EngineHealthy = client.Healthy
	}
	if p.Permissions == nil {
		checker := permission.NewChecker(permission.CheckerConfig{})
		p.Permissions = checker.Check
	}
	return p
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, probes Probes) Report {
	probes = probes.withDefaults(cfg.Config)

	checks := []Check{
		checkConfig(cfg),
		checkHotkeyChord(cfg.Config.Hotkey),
		checkModelsDir(cfg.Config),
		checkActiveModel(cfg.Config),
		checkDevices(cfg.Config, probes.Devices),
		checkPermissions(probes.Permissions),
		checkEngine(ctx, cfg.Config.EngineURL, probes.EngineHealthy),
	}
	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("no file at %q, using defaults", cfg.Path)
	}
	if n := len(cfg.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warning(s))", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkHotkeyChord(chord string) Check {
	parsed, err := hotkey.ParseChord(chord)
	if err != nil {
		return Check{Name: "hotkey", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hotkey", Pass: true, Message: fmt.Sprintf("chord %q parses", parsed.String())}
}

func modelsDir(cfg config.Config) (string, error) {
	if cfg.ModelsDir != "" {
		return cfg.ModelsDir, nil
	}
	return config.DataDir()
}

func checkModelsDir(cfg config.Config) Check {
	dir, err := modelsDir(cfg)
	if err != nil {
		return Check{Name: "models.dir", Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "models.dir", Pass: false, Message: fmt.Sprintf("cannot create %q: %v", dir, err)}
	}

	var downloaded int
	for _, info := range model.Catalog() {
		if _, err := os.Stat(filepath.Join(dir, info.Filename)); err == nil {
			downloaded++
		}
	}
	return Check{Name: "models.dir", Pass: true, Message: fmt.Sprintf("%q holds %d of %d models", dir, downloaded, len(model.Catalog()))}
}

func checkActiveModel(cfg config.Config) Check {
	info, err := model.Lookup(cfg.ActiveModel)
	if err != nil {
		return Check{Name: "model.active", Pass: false, Message: fmt.Sprintf("unknown model %q", cfg.ActiveModel)}
	}

	dir, dirErr := modelsDir(cfg)
	if dirErr != nil {
		return Check{Name: "model.active", Pass: false, Message: dirErr.Error()}
	}
	if _, err := os.Stat(filepath.Join(dir, info.Filename)); err != nil {
		return Check{Name: "model.active", Pass: false, Message: fmt.Sprintf("%s is not downloaded, run: murmur download %s", info.ID, info.ID)}
	}
	return Check{Name: "model.active", Pass: true, Message: fmt.Sprintf("%s (%s) is on disk", info.ID, info.Name)}
}

func checkDevices(cfg config.Config, list func() ([]audio.Device, error)) Check {
	devices, err := list()
	if err != nil {
		return Check{Name: "audio.devices", Pass: false, Message: err.Error()}
	}
	if len(devices) == 0 {
		return Check{Name: "audio.devices", Pass: false, Message: "no input devices found"}
	}

	input := strings.TrimSpace(cfg.Audio.Input)
	if input == "" || input == "default" {
		return Check{Name: "audio.devices", Pass: true, Message: fmt.Sprintf("%d input device(s), using system default", len(devices))}
	}
	for _, device := range devices {
		if device.ID == input {
			return Check{Name: "audio.devices", Pass: true, Message: fmt.Sprintf("configured input %q is present", input)}
		}
	}
	return Check{Name: "audio.devices", Pass: false, Message: fmt.Sprintf("configured input %q not found among %d device(s)", input, len(devices))}
}

func checkPermissions(check func() permission.Snapshot) Check {
	snap := check()
	if snap.AllGranted() {
		return Check{Name: "permissions", Pass: true, Message: "microphone and accessibility granted"}
	}
	return Check{Name: "permissions", Pass: false, Message: "missing: " + strings.Join(snap.Missing(), ", ")}
}

func checkEngine(ctx context.Context, baseURL string, healthy func(context.Context) error) Check {
	if err := healthy(ctx); err != nil {
		return Check{Name: "engine.health", Pass: false, Message: fmt.Sprintf("%s unreachable: %v", baseURL, err)}
	}
	return Check{Name: "engine.health", Pass: true, Message: fmt.Sprintf("ready at %s", baseURL)}
}
