// Package app assembles the murmur commands: the dictation daemon plus the
// one-shot model, device, and control subcommands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/murmurhq/murmur/internal/audio"
	"github.com/murmurhq/murmur/internal/cli"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/doctor"
	"github.com/murmurhq/murmur/internal/engine"
	"github.com/murmurhq/murmur/internal/fsm"
	"github.com/murmurhq/murmur/internal/hotkey"
	"github.com/murmurhq/murmur/internal/ipc"
	"github.com/murmurhq/murmur/internal/logging"
	"github.com/murmurhq/murmur/internal/model"
	"github.com/murmurhq/murmur/internal/output"
	"github.com/murmurhq/murmur/internal/permission"
	"github.com/murmurhq/murmur/internal/session"
	"github.com/murmurhq/murmur/internal/version"
)

const (
	forwardTimeout  = 220 * time.Millisecond
	acquireTimeout  = 180 * time.Millisecond
	acquireRetries  = 8
	hotplugInterval = 3 * time.Second
	engineInterval  = 15 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("murmur"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("murmur"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Probes{})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices()
	case cli.CommandModels:
		return r.commandModels(cfgLoaded.Config, logger)
	case cli.CommandDownload:
		return r.commandDownload(ctx, cfgLoaded.Config, parsed.ModelID, logger)
	case cli.CommandDelete:
		return r.commandDelete(ctx, cfgLoaded.Config, parsed.ModelID, logger)
	case cli.CommandUse:
		return r.commandUse(ctx, cfgLoaded, parsed.ModelID, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandReset:
		return r.forwardOrFail(ctx, ipc.CommandReset)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func newManager(cfg config.Config, logger *slog.Logger) (*model.Manager, *engine.Client, error) {
	dir := cfg.ModelsDir
	if dir == "" {
		var err error
		dir, err = config.DataDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve models dir: %w", err)
		}
	}
	client := engine.New(engine.Config{BaseURL: cfg.EngineURL, Logger: logger})
	manager := model.NewManager(model.ManagerConfig{Engine: client, Dir: dir, Logger: logger})
	return manager, client, nil
}

func (r Runner) commandDevices() int {
	recorder := audio.NewRecorder(audio.RecorderConfig{})
	devices, err := recorder.ListDevices()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no input devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		fmt.Fprintf(r.Stdout, "%s id=%s | description=%q | available=%s\n",
			defaultMark, device.ID, device.Description, availability)
	}
	return 0
}

func (r Runner) commandModels(cfg config.Config, logger *slog.Logger) int {
	manager, _, err := newManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	for _, entry := range manager.List() {
		status := string(entry.Status.Kind)
		if entry.Status.Kind == model.StatusDownloading {
			status = fmt.Sprintf("downloading %3.0f%%", entry.Status.Fraction*100)
		}
		marker := " "
		if entry.ID == cfg.ActiveModel {
			marker = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %-8s %-22s %6d MB  %s\n",
			marker, entry.ID, entry.Name, entry.SizeBytes/(1024*1024), status)
	}
	return 0
}

func (r Runner) commandDownload(ctx context.Context, cfg config.Config, id string, logger *slog.Logger) int {
	manager, _, err := newManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	progress, err := manager.Download(ctx, id)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	lastPercent := -1
	for p := range progress {
		if p.Err != nil {
			fmt.Fprintf(r.Stderr, "\nerror: %v\n", p.Err)
			return 1
		}
		switch p.Phase {
		case model.PhaseDownloading:
			percent := int(p.Fraction * 100)
			if percent != lastPercent {
				fmt.Fprintf(r.Stdout, "\rdownloading %s: %3d%%", id, percent)
				lastPercent = percent
			}
		case model.PhaseLoading:
			fmt.Fprintf(r.Stdout, "\rdownloaded %s, loading...      \n", id)
		case model.PhaseWarming:
			fmt.Fprintln(r.Stdout, "warming up...")
		}
		if p.Done {
			fmt.Fprintf(r.Stdout, "%s is ready\n", id)
		}
	}
	return 0
}

func (r Runner) commandDelete(ctx context.Context, cfg config.Config, id string, logger *slog.Logger) int {
	manager, _, err := newManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := manager.Delete(ctx, id); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "deleted %s\n", id)
	return 0
}

func (r Runner) commandUse(ctx context.Context, cfgLoaded config.Loaded, id string, logger *slog.Logger) int {
	manager, _, err := newManager(cfgLoaded.Config, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	status, err := manager.Status(id)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if status.Kind == model.StatusNotDownloaded {
		fmt.Fprintf(r.Stderr, "error: %s is not downloaded, run: murmur download %s\n", id, id)
		return 1
	}

	store := config.NewStore(cfgLoaded.Path, cfgLoaded.Config)
	if _, err := store.Update(func(cfg *config.Config) { cfg.ActiveModel = id }); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "active model is now %s\n", id)

	// A running daemon re-reads the file when poked; without one the change
	// simply takes effect on the next start.
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		if _, handled, fwdErr := tryForward(ctx, socketPath, ipc.CommandReload); handled {
			if fwdErr != nil {
				fmt.Fprintf(r.Stderr, "warning: daemon reload failed: %v\n", fwdErr)
				return 1
			}
			fmt.Fprintln(r.Stdout, "running daemon reloaded")
			return 0
		}
	}
	fmt.Fprintln(r.Stdout, "no running daemon, change takes effect on next start")
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		line := resp.State
		if resp.ActiveModel != "" {
			line = fmt.Sprintf("%s (model: %s)", line, resp.ActiveModel)
		}
		if resp.Message != "" {
			line = fmt.Sprintf("%s: %s", line, resp.Message)
		}
		fmt.Fprintln(r.Stdout, line)
		return 0
	}

	fmt.Fprintln(r.Stdout, "not running")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running murmur daemon")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandRun(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, acquireTimeout, acquireRetries)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: murmur daemon already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	cfg := cfgLoaded.Config
	store := config.NewStore(cfgLoaded.Path, cfg)

	manager, client, err := newManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer manager.Unload()

	recorder := audio.NewRecorder(audio.RecorderConfig{
		DeviceID: cfg.Audio.Input,
		Logger:   logger,
		OnFallback: func(device string, err error) {
			if err != nil {
				logger.Error("no usable input device", "error", err)
				return
			}
			logger.Warn("capture fell back to default device", "device", device)
		},
	})

	checker := permission.NewChecker(permission.CheckerConfig{Logger: logger})
	inserter := output.NewInserter(logger)
	if err := inserter.Warm(); err != nil {
		logger.Warn("keyboard warm-up failed", "error", err)
	}

	coordinator := session.New(session.Config{
		Logger:       logger,
		Capture:      recorder,
		Recognizer:   manager,
		Inserter:     inserter,
		CopyFallback: output.Copy,
		Permissions:  checker,
		LanguageMode: func() model.LanguageMode {
			mode, err := model.ParseLanguageMode(store.Get().LanguageMode)
			if err != nil {
				return model.AutoLanguage()
			}
			return mode
		},
		ActiveModel:  manager.ActiveID,
		ErrorTimeout: time.Duration(cfg.ErrorTimeoutMS) * time.Millisecond,
	})

	if err := manager.SwitchTo(ctx, cfg.ActiveModel); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			fmt.Fprintf(r.Stderr, "error: model %q is not downloaded, run: murmur download %s\n",
				cfg.ActiveModel, cfg.ActiveModel)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("model activation failed", "model", cfg.ActiveModel, "error", err)
		return 1
	}

	chord, err := hotkey.ParseChord(cfg.Hotkey)
	if err != nil {
		logger.Warn("invalid hotkey in config, using default", "hotkey", cfg.Hotkey, "error", err)
		chord, _ = hotkey.ParseChord(hotkey.DefaultChord)
	}
	listenerHK := hotkey.NewListener()
	if err := listenerHK.Register(chord); err != nil {
		fmt.Fprintf(r.Stderr, "error: register hotkey %q: %v\n", chord.String(), err)
		return 1
	}
	defer listenerHK.Unregister()

	handler := ipc.HandlerFunc(func(reqCtx context.Context, req ipc.Request) ipc.Response {
		if req.Command == ipc.CommandReload {
			return reloadConfig(cfgLoaded.Path, store, logger)
		}
		return coordinator.Handle(reqCtx, req)
	})

	serveCtx, serveCancel := context.WithCancel(ctx)
	defer serveCancel()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- ipc.Serve(serveCtx, listener, handler)
	}()

	go checker.Watch(serveCtx, func(snap permission.Snapshot) {
		if !snap.AllGranted() {
			logger.Warn("permission state changed", "missing", strings.Join(snap.Missing(), ", "))
		}
	})

	go watchEngine(serveCtx, client, manager, logger, cfg.ReloadAttempts)

	logger.Info("daemon ready",
		"hotkey", chord.String(),
		"model", manager.ActiveID(),
		"socket", socketPath,
	)
	fmt.Fprintf(r.Stdout, "murmur ready, hold %s to dictate\n", chord.String())

	r.eventLoop(ctx, coordinator, recorder, listenerHK, store, manager, logger)

	serveCancel()
	if err := <-serveErr; err != nil {
		fmt.Fprintf(r.Stderr, "error: control socket failed: %v\n", err)
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

// eventLoop is the daemon's single dispatch point: hotkey edges, config
// updates, and the device hotplug poll all land here.
func (r Runner) eventLoop(
	ctx context.Context,
	coordinator *session.Coordinator,
	recorder *audio.Recorder,
	hk *hotkey.Listener,
	store *config.Store,
	manager *model.Manager,
	logger *slog.Logger,
) {
	updates := store.Subscribe()
	hotplug := time.NewTicker(hotplugInterval)
	defer hotplug.Stop()

	endDone := make(chan struct{}, 1)
	endDone <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			coordinator.ResetToIdle()
			return
		case <-hk.Keydown():
			coordinator.Begin(ctx)
		case <-hk.Keyup():
			// Recognition can take seconds; run it off the event loop so a
			// follow-up press is observed. The coordinator serializes.
			select {
			case <-endDone:
				go func() {
					coordinator.End(ctx)
					endDone <- struct{}{}
				}()
			default:
			}
		case cfg := <-updates:
			r.applyConfig(ctx, cfg, coordinator, recorder, hk, manager, logger)
		case <-hotplug.C:
			r.checkDevice(coordinator, recorder, logger)
		}
	}
}

// reloadConfig re-reads the config file and pushes the result through the
// store, whose subscriber channel feeds the event loop. This is how a
// sibling process (murmur use) reaches a running daemon.
func reloadConfig(path string, store *config.Store, logger *slog.Logger) ipc.Response {
	loaded, err := config.Load(path)
	if err != nil {
		logger.Error("config reload failed", "path", path, "error", err)
		return ipc.Response{Error: fmt.Sprintf("reload config: %v", err)}
	}
	for _, w := range loaded.Warnings {
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	if _, err := store.Update(func(cfg *config.Config) { *cfg = loaded.Config }); err != nil {
		logger.Error("config reload rejected", "error", err)
		return ipc.Response{Error: fmt.Sprintf("reload config: %v", err)}
	}
	logger.Info("config reloaded", "path", path)
	return ipc.Response{OK: true, Message: "config reloaded"}
}

// applyConfig applies a live config change without a daemon restart.
func (r Runner) applyConfig(
	ctx context.Context,
	cfg config.Config,
	coordinator *session.Coordinator,
	recorder *audio.Recorder,
	hk *hotkey.Listener,
	manager *model.Manager,
	logger *slog.Logger,
) {
	if cfg.Audio.Input != recorder.Device() {
		recorder.SetDevice(cfg.Audio.Input)
		logger.Info("input device changed", "device", cfg.Audio.Input)
	}

	if chord, err := hotkey.ParseChord(cfg.Hotkey); err == nil {
		if err := hk.Register(chord); err != nil {
			logger.Error("hotkey re-register failed", "hotkey", chord.String(), "error", err)
		}
	} else {
		logger.Warn("ignoring invalid hotkey", "hotkey", cfg.Hotkey, "error", err)
	}

	if cfg.ActiveModel != manager.ActiveID() {
		if err := manager.SwitchTo(ctx, cfg.ActiveModel); err != nil {
			logger.Error("model switch failed", "model", cfg.ActiveModel, "error", err)
			coordinator.HandleError(fmt.Sprintf("could not switch to model %s", cfg.ActiveModel))
		}
	}
}

// checkDevice verifies mid-recording that the selected source is still
// present, falling back to the default source when it vanished.
func (r Runner) checkDevice(coordinator *session.Coordinator, recorder *audio.Recorder, logger *slog.Logger) {
	if coordinator.State() != fsm.StateRecording {
		return
	}
	current := recorder.Device()
	if current == "" || current == "default" {
		return
	}

	devices, err := recorder.ListDevices()
	if err != nil {
		logger.Warn("device poll failed", "error", err)
		return
	}
	for _, device := range devices {
		if device.ID == current && device.Available {
			return
		}
	}

	recorder.HandleDeviceDisconnection()
	coordinator.HandleError("input device disconnected")
}

// watchEngine pings the recognition engine and reloads the active model
// after the engine comes back from a restart.
func watchEngine(ctx context.Context, client *engine.Client, manager *model.Manager, logger *slog.Logger, attempts int) {
	ticker := time.NewTicker(engineInterval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := client.Healthy(ctx)
		switch {
		case err == nil && !healthy:
			healthy = true
			logger.Info("engine is back, reloading model")
			if manager.ActiveID() == "" {
				continue
			}
			if err := manager.ReloadWithBackoff(ctx, attempts); err != nil {
				logger.Error("model reload failed", "error", err)
			}
		case err != nil && healthy:
			healthy = false
			logger.Warn("engine unreachable", "error", err)
		}
	}
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	return err != nil && errors.Is(err, syscall.ECONNREFUSED)
}
