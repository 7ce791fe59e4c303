// Package session coordinates the push-to-talk dictation flow across
// capture, recognition, and text insertion.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmurhq/murmur/internal/fsm"
	"github.com/murmurhq/murmur/internal/ipc"
	"github.com/murmurhq/murmur/internal/model"
)

// DefaultErrorTimeout bounds how long the coordinator lingers in the error
// state before returning to idle on its own.
const DefaultErrorTimeout = 5 * time.Second

// Config wires the coordinator's collaborators. Any nil field falls back to
// a safe no-op so the coordinator stays usable in partial assemblies.
type Config struct {
	Logger       *slog.Logger
	Capture      Capture
	Recognizer   Recognizer
	Inserter     Inserter
	CopyFallback func(text string) error
	Permissions  Permissions
	LanguageMode func() model.LanguageMode
	ActiveModel  func() string
	ErrorTimeout time.Duration
}

// Coordinator owns the dictation state machine. Begin and End map to hotkey
// press and release; everything in between is driven by their outcomes.
type Coordinator struct {
	logger       *slog.Logger
	capture      Capture
	recognizer   Recognizer
	inserter     Inserter
	copyFallback func(string) error
	permissions  Permissions
	languageMode func() model.LanguageMode
	activeModel  func() string
	errorTimeout time.Duration

	// opMu serializes Begin, End, Cancel, and reset against one another so
	// a release racing a press cannot interleave mid-transition.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     fsm.State
	errMsg    string
	levels    <-chan float64
	sessionID string
	errGen    int
}

// New builds a coordinator in the idle state.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		logger:       cfg.Logger,
		capture:      cfg.Capture,
		recognizer:   cfg.Recognizer,
		inserter:     cfg.Inserter,
		copyFallback: cfg.CopyFallback,
		permissions:  cfg.Permissions,
		languageMode: cfg.LanguageMode,
		activeModel:  cfg.ActiveModel,
		errorTimeout: cfg.ErrorTimeout,
		state:        fsm.StateIdle,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.capture == nil {
		c.capture = noopCapture{}
	}
	if c.recognizer == nil {
		c.recognizer = RecognizerFunc(func(context.Context, []float32, model.LanguageMode) (model.Transcription, error) {
			return model.Transcription{}, model.ErrNoModelLoaded
		})
	}
	if c.inserter == nil {
		c.inserter = InserterFunc(func(context.Context, string) error { return nil })
	}
	if c.copyFallback == nil {
		c.copyFallback = func(string) error { return nil }
	}
	if c.permissions == nil {
		c.permissions = PermissionsFunc(grantedPermissions)
	}
	if c.languageMode == nil {
		c.languageMode = func() model.LanguageMode { return model.AutoLanguage() }
	}
	if c.activeModel == nil {
		c.activeModel = func() string { return "" }
	}
	if c.errorTimeout <= 0 {
		c.errorTimeout = DefaultErrorTimeout
	}
	return c
}

// State reports the current coordinator state.
func (c *Coordinator) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ErrorMessage reports the message for the current error state, empty
// otherwise.
func (c *Coordinator) ErrorMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// LevelStream exposes the live input-level stream while recording, nil
// otherwise.
func (c *Coordinator) LevelStream() <-chan float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levels
}

// Begin starts a recording session on hotkey press. It is a no-op unless
// the coordinator is idle. The unlocked pre-check keeps the no-op path from
// queueing behind an in-flight End, so a caller's event loop is never
// stalled for the duration of a transcription.
func (c *Coordinator) Begin(ctx context.Context) {
	if c.State() != fsm.StateIdle {
		c.logger.Debug("begin ignored", "state", string(c.State()))
		return
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != fsm.StateIdle {
		c.logger.Debug("begin ignored", "state", string(c.State()))
		return
	}

	snap := c.permissions.Check()
	if !snap.AllGranted() {
		c.failLocked(fmt.Sprintf("missing permission: %s", strings.Join(snap.Missing(), ", ")))
		return
	}

	levels, err := c.capture.Start(ctx)
	if err != nil {
		c.logger.Error("capture start failed", "error", err)
		c.failLocked("unable to start recording")
		return
	}

	id := uuid.NewString()
	c.mu.Lock()
	c.levels = levels
	c.sessionID = id
	c.mu.Unlock()

	_ = c.transition(fsm.EventBegin)
	c.logger.Info("session recording", "session", id)
}

// End stops capture on hotkey release and runs the buffered audio through
// recognition and insertion. It is a no-op unless recording, checked
// without the operation lock first for the same reason as Begin.
func (c *Coordinator) End(ctx context.Context) {
	if c.State() != fsm.StateRecording {
		c.logger.Debug("end ignored", "state", string(c.State()))
		return
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != fsm.StateRecording {
		c.logger.Debug("end ignored", "state", string(c.State()))
		return
	}

	samples := c.capture.Stop()
	c.mu.Lock()
	id := c.sessionID
	c.levels = nil
	c.mu.Unlock()

	if len(samples) == 0 {
		_ = c.transition(fsm.EventDiscard)
		c.logger.Info("session discarded", "session", id, "reason", "empty capture")
		return
	}

	_ = c.transition(fsm.EventStop)

	result, err := c.recognizer.Transcribe(ctx, samples, c.languageMode())
	if err != nil {
		if errors.Is(err, model.ErrAudioTooShort) || errors.Is(err, model.ErrEmptyTranscription) {
			_ = c.transition(fsm.EventReset)
			c.logger.Info("session discarded", "session", id, "reason", err.Error())
			return
		}
		c.logger.Error("transcription failed", "session", id, "error", err)
		c.failLocked("speech recognition failed")
		return
	}

	if err := c.inserter.Insert(ctx, result.Text); err != nil {
		c.logger.Error("insertion failed", "session", id, "error", err)
		msg := "insertion failed, transcript copied to clipboard"
		if copyErr := c.copyFallback(result.Text); copyErr != nil {
			c.logger.Error("clipboard fallback failed", "session", id, "error", copyErr)
			msg = "insertion failed and clipboard is unavailable"
		}
		c.failLocked(msg)
		return
	}

	_ = c.transition(fsm.EventComplete)
	c.logger.Info("session complete", "session", id, "chars", len(result.Text), "language", result.Language, "elapsed", result.Elapsed)
}

// Cancel discards an in-flight recording without running recognition.
func (c *Coordinator) Cancel() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != fsm.StateRecording {
		return
	}
	c.capture.Cancel()
	c.mu.Lock()
	c.levels = nil
	c.mu.Unlock()
	_ = c.transition(fsm.EventDiscard)
	c.logger.Info("session cancelled")
}

// HandleError forces the coordinator into the error state from anywhere,
// discarding any in-flight capture. Used for faults raised outside the
// Begin/End flow, such as a device disconnect.
func (c *Coordinator) HandleError(message string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.capture.Cancel()
	c.failLocked(message)
}

// ResetToIdle clears any error or stuck state and returns to idle.
func (c *Coordinator) ResetToIdle() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.capture.Cancel()
	c.mu.Lock()
	c.errGen++
	c.errMsg = ""
	c.levels = nil
	c.mu.Unlock()
	_ = c.transition(fsm.EventReset)
	c.logger.Info("session reset")
}

// Handle serves control-socket requests against the coordinator.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{
			OK:          true,
			State:       string(c.State()),
			ActiveModel: c.activeModel(),
			Message:     c.ErrorMessage(),
		}
	case ipc.CommandCancel:
		c.Cancel()
		return ipc.Response{OK: true, State: string(c.State())}
	case ipc.CommandReset:
		c.ResetToIdle()
		return ipc.Response{OK: true, State: string(c.State())}
	default:
		return ipc.Response{Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

// failLocked moves to the error state and arms the auto-dismiss timer.
// Callers must hold opMu.
func (c *Coordinator) failLocked(message string) {
	c.mu.Lock()
	c.errMsg = message
	c.errGen++
	gen := c.errGen
	c.levels = nil
	c.mu.Unlock()

	_ = c.transition(fsm.EventFail)
	c.logger.Warn("session error", "message", message)

	time.AfterFunc(c.errorTimeout, func() { c.dismissError(gen) })
}

// dismissError reverts a timed-out error back to idle. The generation guard
// keeps a stale timer from clobbering a newer error.
func (c *Coordinator) dismissError(gen int) {
	c.mu.Lock()
	if c.errGen != gen || c.state != fsm.StateError {
		c.mu.Unlock()
		return
	}
	c.state = fsm.StateIdle
	c.errMsg = ""
	c.mu.Unlock()
	c.logger.Info("error dismissed")
}

func (c *Coordinator) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Warn("transition rejected", "error", err)
		return err
	}
	c.state = next
	return nil
}
