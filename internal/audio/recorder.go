package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// RecorderConfig wires a Recorder. Zero-value fields fall back to safe
// defaults so tests can supply only what they exercise.
type RecorderConfig struct {
	Backend  Backend
	DeviceID string
	Logger   *slog.Logger
	// OnFallback is invoked after a device disconnection was handled by
	// switching to the default source, or with a non-nil error when no
	// usable device remains.
	OnFallback func(device string, err error)
}

// Recorder owns one push-to-talk capture at a time: it opens the selected
// device, resamples to TargetRate, accumulates samples in memory, and emits
// a coarse level stream for UI metering. Samples never touch disk.
type Recorder struct {
	backend    Backend
	logger     *slog.Logger
	onFallback func(device string, err error)

	mu       sync.Mutex
	deviceID string
	stream   Stream
	res      *resampler
	samples  []float32
	levels   chan float64
	stopCh   chan struct{}
	open     bool
}

// NewRecorder builds a Recorder around cfg.
func NewRecorder(cfg RecorderConfig) *Recorder {
	backend := cfg.Backend
	if backend == nil {
		backend = &PulseBackend{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	onFallback := cfg.OnFallback
	if onFallback == nil {
		onFallback = func(string, error) {}
	}
	return &Recorder{
		backend:    backend,
		logger:     logger,
		onFallback: onFallback,
		deviceID:   cfg.DeviceID,
	}
}

// SetDevice changes the device used by the next Start. It does not affect a
// capture already in progress.
func (r *Recorder) SetDevice(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deviceID = id
}

// Device returns the currently selected device id.
func (r *Recorder) Device() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceID
}

// Start opens the selected device and begins accumulating samples. The
// returned channel carries display levels and is closed on Stop or Cancel.
// On any failure no capture state is left behind.
func (r *Recorder) Start(ctx context.Context) (<-chan float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		return nil, ErrAlreadyCapturing
	}

	stream, err := r.backend.Open(r.deviceID, r.onChunk)
	if err != nil {
		return nil, fmt.Errorf("open capture device %q: %w", r.deviceID, err)
	}

	rate := stream.Rate()
	if rate <= 0 {
		_ = stream.Close()
		return nil, fmt.Errorf("device %q reports rate %d: %w", r.deviceID, rate, ErrFormatUnsupported)
	}

	r.stream = stream
	r.res = newResampler(rate, TargetRate)
	r.samples = nil
	r.levels = make(chan float64, 32)
	r.stopCh = make(chan struct{})
	r.open = true

	stream.Start()
	r.logger.Info("capture started", "device", r.deviceID, "rate", rate)

	stopCh := r.stopCh
	go func() {
		select {
		case <-ctx.Done():
			r.Cancel()
		case <-stopCh:
		}
	}()

	return r.levels, nil
}

// Stop halts capture and returns everything accumulated since Start. It is
// idempotent: later calls return an empty slice.
func (r *Recorder) Stop() []float32 {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return nil
	}
	samples := r.samples
	stream := r.detachLocked()
	r.mu.Unlock()

	closeStream(stream)
	r.logger.Info("capture stopped", "samples", len(samples))
	return samples
}

// Cancel halts capture and discards the buffer. Idempotent.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return
	}
	discarded := len(r.samples)
	stream := r.detachLocked()
	r.mu.Unlock()

	closeStream(stream)
	r.logger.Info("capture cancelled", "samples_discarded", discarded)
}

// detachLocked clears all capture state and hands the stream back for the
// caller to close after releasing the mutex. The backend delivers chunks and
// request replies on one goroutine, so closing the stream while holding the
// mutex an in-flight onChunk wants would stall teardown behind the
// backend's request timeout. The level channel is still closed under the
// same mutex that guards sends into it, so a send on a closed channel
// cannot happen.
func (r *Recorder) detachLocked() Stream {
	stream := r.stream
	r.open = false
	r.stream = nil
	close(r.stopCh)
	close(r.levels)
	r.res = nil
	r.samples = nil
	return stream
}

func closeStream(stream Stream) {
	if stream != nil {
		_ = stream.Close()
	}
}

// onChunk runs on the backend delivery goroutine.
func (r *Recorder) onChunk(chunk []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return
	}
	r.samples = append(r.samples, r.res.Process(chunk)...)
	select {
	case r.levels <- Level(chunk):
	default:
	}
}

// ListDevices enumerates input sources, dropping entries without a stable
// id or a human-readable description.
func (r *Recorder) ListDevices() ([]Device, error) {
	devices, err := r.backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate input devices: %w", err)
	}
	usable := make([]Device, 0, len(devices))
	for _, dev := range devices {
		if dev.ID == "" || dev.Description == "" {
			continue
		}
		usable = append(usable, dev)
	}
	return usable, nil
}

// HandleDeviceDisconnection reacts to the active device vanishing: any
// in-progress capture is discarded and the recorder falls back to the
// default source. The stored settings are not rewritten; the fallback is
// session-scoped. Reports whether a usable device remains.
func (r *Recorder) HandleDeviceDisconnection() bool {
	r.Cancel()

	def, err := r.backend.DefaultDevice()
	if err != nil {
		r.logger.Error("device disconnected and no default source", "error", err)
		r.onFallback("", fmt.Errorf("no usable input device: %w", err))
		return false
	}

	r.mu.Lock()
	previous := r.deviceID
	r.deviceID = def.ID
	r.mu.Unlock()

	r.logger.Warn("input device disconnected, using default",
		"previous", previous, "fallback", def.ID)
	r.onFallback(def.Description, nil)
	return true
}
