package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/murmurhq/murmur/internal/transcript"
)

// MinSamples is the shortest transcribable buffer: 0.5 s at 16 kHz.
const MinSamples = 8000

// WaitFunc sleeps for d or until ctx is done. Injectable for tests.
type WaitFunc func(ctx context.Context, d time.Duration) error

func defaultWait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Engine Engine
	Dir    string
	Logger *slog.Logger
	Wait   WaitFunc
}

// Entry is one catalog tier with its derived status.
type Entry struct {
	Info
	Status Status
}

// Transcription is the result of one recognition pass. It is returned to
// the caller and never persisted or logged.
type Transcription struct {
	Text     string
	Language string
	Elapsed  time.Duration
}

// Manager owns model state: which tier is active, which downloads are in
// flight, and the loaded engine handle. The in-flight marker map is the
// only download concurrency structure; status is always derived from it
// plus the disk, never stored.
type Manager struct {
	engine Engine
	dir    string
	logger *slog.Logger
	wait   WaitFunc

	mu       sync.Mutex
	inflight map[string]float64
	activeID string
	handle   Handle
}

// NewManager builds a Manager around cfg.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	wait := cfg.Wait
	if wait == nil {
		wait = defaultWait
	}
	return &Manager{
		engine:   cfg.Engine,
		dir:      cfg.Dir,
		logger:   logger,
		wait:     wait,
		inflight: make(map[string]float64),
	}
}

// List returns every catalog tier with its current status.
func (m *Manager) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, 0, len(catalog))
	for _, info := range catalog {
		entries = append(entries, Entry{Info: info, Status: m.statusLocked(info)})
	}
	return entries
}

// Status reports the derived status of one tier.
func (m *Manager) Status(id string) (Status, error) {
	info, err := Lookup(id)
	if err != nil {
		return Status{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked(info), nil
}

// ActiveID returns the loaded tier id, or "" when nothing is active.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

func (m *Manager) statusLocked(info Info) Status {
	frac, downloading := m.inflight[info.ID]
	return deriveStatus(downloading, frac, m.onDisk(info), m.activeID == info.ID)
}

func (m *Manager) path(info Info) string {
	return filepath.Join(m.dir, info.Filename)
}

func (m *Manager) onDisk(info Info) bool {
	fi, err := os.Stat(m.path(info))
	return err == nil && fi.Size() > 0
}

// Download starts fetching and activating a tier. At most one download per
// tier may be in flight; a second request fails with ErrAlreadyDownloading.
// The returned channel carries progress and closes after exactly one
// terminal event.
func (m *Manager) Download(ctx context.Context, id string) (<-chan Progress, error) {
	info, err := Lookup(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, busy := m.inflight[id]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("model %q: %w", id, ErrAlreadyDownloading)
	}
	m.inflight[id] = 0
	m.mu.Unlock()

	ch := make(chan Progress, 16)
	go m.runDownload(ctx, info, ch)
	return ch, nil
}

func (m *Manager) runDownload(ctx context.Context, info Info, ch chan Progress) {
	defer close(ch)
	// The deferred delete is the marker's only removal point, so it is
	// cleared exactly once whether the download succeeds, fails, or is
	// cancelled.
	defer func() {
		m.mu.Lock()
		delete(m.inflight, info.ID)
		m.mu.Unlock()
	}()

	var lastFrac float64
	onProgress := func(done, total int64) {
		if total <= 0 {
			total = info.SizeBytes
		}
		frac := float64(done) / float64(total)
		if frac > 1 {
			frac = 1
		}
		// Fractions never regress, even if the size estimate was low.
		if frac < lastFrac {
			frac = lastFrac
		}
		lastFrac = frac

		m.mu.Lock()
		m.inflight[info.ID] = frac
		m.mu.Unlock()

		m.send(ch, Progress{
			ModelID:    info.ID,
			Phase:      PhaseDownloading,
			Fraction:   frac,
			Bytes:      done,
			TotalBytes: total,
		}, false)
	}

	if _, err := m.engine.Download(ctx, info.URL, m.path(info), onProgress); err != nil {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("model %q: %w", info.ID, ErrDownloadCancelled)
		} else {
			err = fmt.Errorf("download model %q: %w", info.ID, err)
		}
		m.logger.Error("model download failed", "model", info.ID, "error", err)
		m.send(ch, Progress{ModelID: info.ID, Err: err}, true)
		return
	}
	m.logger.Info("model downloaded", "model", info.ID)

	m.send(ch, Progress{ModelID: info.ID, Phase: PhaseLoading, Fraction: 1}, false)
	if err := m.load(ctx, info); err != nil {
		m.send(ch, Progress{ModelID: info.ID, Err: err}, true)
		return
	}

	m.send(ch, Progress{ModelID: info.ID, Phase: PhaseWarming, Fraction: 1}, false)
	m.warm(ctx)

	m.send(ch, Progress{ModelID: info.ID, Phase: PhaseWarming, Fraction: 1, Done: true}, true)
}

// send delivers a progress event without blocking the download goroutine.
// Intermediate events are dropped when the consumer lags. The terminal event
// evicts buffered intermediates until it fits, so it is delivered even when
// the consumer abandoned the channel and the deferred marker cleanup always
// runs.
func (m *Manager) send(ch chan Progress, p Progress, terminal bool) {
	if !terminal {
		select {
		case ch <- p:
		default:
		}
		return
	}
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// warm runs one inference over silence so the first real utterance does not
// pay the engine's cold-start cost. Best effort.
func (m *Manager) warm(ctx context.Context) {
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()
	if handle == nil {
		return
	}
	if _, err := handle.Transcribe(ctx, make([]float32, MinSamples), "en", false); err != nil {
		m.logger.Debug("model warmup inference", "error", err)
	}
}

// SwitchTo activates an already-downloaded tier.
func (m *Manager) SwitchTo(ctx context.Context, id string) error {
	info, err := Lookup(id)
	if err != nil {
		return err
	}
	if !m.onDisk(info) {
		return fmt.Errorf("model %q is not downloaded: %w", id, ErrNotFound)
	}
	return m.load(ctx, info)
}

// load swaps the active handle. On failure nothing is left active: a model
// that cannot load must not be reported as loaded.
func (m *Manager) load(ctx context.Context, info Info) error {
	m.mu.Lock()
	old := m.handle
	m.handle = nil
	m.activeID = ""
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	handle, err := m.engine.Load(ctx, m.path(info))
	if err != nil {
		m.logger.Error("model load failed", "model", info.ID, "error", err)
		return fmt.Errorf("load model %q: %w: %w", info.ID, ErrLoadFailed, err)
	}

	m.mu.Lock()
	m.handle = handle
	m.activeID = info.ID
	m.mu.Unlock()

	m.logger.Info("model active", "model", info.ID)
	return nil
}

// Unload releases the active handle, if any.
func (m *Manager) Unload() {
	m.mu.Lock()
	old := m.handle
	m.handle = nil
	m.activeID = ""
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Delete removes a downloaded tier. Deleting the active tier first switches
// to another downloaded one, or unloads when none remains.
func (m *Manager) Delete(ctx context.Context, id string) error {
	info, err := Lookup(id)
	if err != nil {
		return err
	}
	if !m.onDisk(info) {
		return fmt.Errorf("model %q is not downloaded: %w", id, ErrNotFound)
	}

	m.mu.Lock()
	active := m.activeID == id
	m.mu.Unlock()

	if active {
		if next, ok := m.otherDownloaded(id); ok {
			if err := m.SwitchTo(ctx, next.ID); err != nil {
				return fmt.Errorf("switch away from %q before delete: %w", id, err)
			}
			m.logger.Info("active model deleted, switched", "deleted", id, "active", next.ID)
		} else {
			m.Unload()
			m.logger.Info("active model deleted, nothing to switch to", "deleted", id)
		}
	}

	if err := os.Remove(m.path(info)); err != nil {
		return fmt.Errorf("remove model %q: %w", id, err)
	}
	return nil
}

func (m *Manager) otherDownloaded(excludeID string) (Info, bool) {
	for _, info := range catalog {
		if info.ID == excludeID {
			continue
		}
		if m.onDisk(info) {
			return info, true
		}
	}
	return Info{}, false
}

// ValidateIntegrity checks the on-disk artifact without instantiating the
// engine.
func (m *Manager) ValidateIntegrity(id string) error {
	info, err := Lookup(id)
	if err != nil {
		return err
	}
	fi, err := os.Stat(m.path(info))
	if err != nil {
		return fmt.Errorf("model %q is not downloaded: %w", id, ErrNotFound)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("model %q is empty: %w", id, ErrIntegrity)
	}
	if fi.Size() < info.SizeBytes/2 {
		return fmt.Errorf("model %q is truncated at %d bytes: %w", id, fi.Size(), ErrIntegrity)
	}
	return nil
}

// Transcribe runs recognition over a finished capture buffer.
func (m *Manager) Transcribe(ctx context.Context, samples []float32, mode LanguageMode) (Transcription, error) {
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		return Transcription{}, ErrNoModelLoaded
	}
	if len(samples) < MinSamples {
		return Transcription{}, fmt.Errorf("%d samples: %w", len(samples), ErrAudioTooShort)
	}

	language, detect := mode.Request()
	start := time.Now()
	segments, err := handle.Transcribe(ctx, samples, language, detect)
	if err != nil {
		return Transcription{}, fmt.Errorf("transcribe: %w", err)
	}

	texts := make([]string, 0, len(segments))
	detected := ""
	for _, segment := range segments {
		texts = append(texts, segment.Text)
		if detected == "" {
			detected = segment.Language
		}
	}

	text := transcript.Join(texts)
	if text == "" {
		return Transcription{}, ErrEmptyTranscription
	}

	result := Transcription{
		Text:     text,
		Language: mode.Resolve(detected),
		Elapsed:  time.Since(start),
	}
	m.logger.Info("transcription complete",
		"chars", len(result.Text), "language", result.Language, "elapsed", result.Elapsed)
	return result, nil
}

// ReloadWithBackoff retries loading the active tier after an engine crash,
// sleeping 1 s, 2 s, 4 s... before each attempt. Exhausting the attempts
// unloads the model and returns the last load error.
func (m *Manager) ReloadWithBackoff(ctx context.Context, maxAttempts int) error {
	m.mu.Lock()
	id := m.activeID
	m.mu.Unlock()
	if id == "" {
		return ErrNoModelLoaded
	}
	info, err := Lookup(id)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		delay := backoffDelay(attempt, reloadInitialDelay, reloadMaxDelay, reloadMultiplier)
		if err := m.wait(ctx, delay); err != nil {
			return err
		}
		if lastErr = m.load(ctx, info); lastErr == nil {
			return nil
		}
		m.logger.Warn("model reload attempt failed",
			"model", id, "attempt", attempt+1, "error", lastErr)
	}

	m.Unload()
	return lastErr
}
