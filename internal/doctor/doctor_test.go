package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/murmurhq/murmur/internal/audio"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/model"
	"github.com/murmurhq/murmur/internal/permission"
)

func grantedSnapshot() permission.Snapshot {
	return permission.Snapshot{
		Microphone:    permission.Authorized,
		Accessibility: permission.Authorized,
	}
}

func writeModel(t *testing.T, dir, id string) {
	t.Helper()
	info, err := model.Lookup(id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, info.Filename), []byte("model-bytes"), 0o644))
}

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckConfigReportsDefaultsAndWarnings(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/tmp/config.conf", Exists: false})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")

	check = checkConfig(config.Loaded{
		Path:     "/tmp/config.conf",
		Exists:   true,
		Warnings: []config.Warning{{Line: 3, Message: "unknown key"}},
	})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "1 warning")
}

func TestCheckHotkeyChord(t *testing.T) {
	check := checkHotkeyChord("ctrl+shift+space")
	require.True(t, check.Pass)

	check = checkHotkeyChord("space")
	require.False(t, check.Pass)
}

func TestCheckModelsDirCountsDownloads(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "base")
	writeModel(t, dir, "tiny")

	cfg := config.Default()
	cfg.ModelsDir = dir

	check := checkModelsDir(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "2 of")
}

func TestCheckActiveModel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ModelsDir = dir

	cfg.ActiveModel = "bogus"
	check := checkActiveModel(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unknown model")

	cfg.ActiveModel = "base"
	check = checkActiveModel(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "murmur download base")

	writeModel(t, dir, "base")
	check = checkActiveModel(cfg)
	require.True(t, check.Pass)
}

func TestCheckDevices(t *testing.T) {
	cfg := config.Default()

	check := checkDevices(cfg, func() ([]audio.Device, error) {
		return nil, errors.New("pulse unreachable")
	})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "pulse unreachable")

	check = checkDevices(cfg, func() ([]audio.Device, error) {
		return nil, nil
	})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "no input devices")

	devices := []audio.Device{{ID: "alsa_input.usb-mic", Description: "USB Mic"}}
	check = checkDevices(cfg, func() ([]audio.Device, error) { return devices, nil })
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "system default")

	cfg.Audio.Input = "alsa_input.usb-mic"
	check = checkDevices(cfg, func() ([]audio.Device, error) { return devices, nil })
	require.True(t, check.Pass)

	cfg.Audio.Input = "alsa_input.gone"
	check = checkDevices(cfg, func() ([]audio.Device, error) { return devices, nil })
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "not found")
}

func TestCheckPermissions(t *testing.T) {
	check := checkPermissions(grantedSnapshot)
	require.True(t, check.Pass)

	check = checkPermissions(func() permission.Snapshot {
		return permission.Snapshot{Microphone: permission.Denied, Accessibility: permission.Authorized}
	})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "microphone")
}

func TestCheckEngine(t *testing.T) {
	check := checkEngine(context.Background(), "http://127.0.0.1:8771", func(context.Context) error { return nil })
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "ready at")

	check = checkEngine(context.Background(), "http://127.0.0.1:8771", func(context.Context) error {
		return errors.New("connection refused")
	})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unreachable")
}

func TestRunWithInjectedProbes(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "base")

	cfg := config.Default()
	cfg.ModelsDir = dir

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.conf", Exists: true, Config: cfg}, Probes{
		Devices: func() ([]audio.Device, error) {
			return []audio.Device{{ID: "mic", Description: "Mic"}}, nil
		},
		EngineHealthy: func(context.Context) error { return nil },
		Permissions:   grantedSnapshot,
	})

	require.Len(t, report.Checks, 7)
	require.True(t, report.OK(), report.String())
}
