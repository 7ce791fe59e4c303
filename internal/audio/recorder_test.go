package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	rate    int
	started atomic.Bool
	closed  atomic.Bool
	onClose func()
}

func (s *fakeStream) Start()    { s.started.Store(true) }
func (s *fakeStream) Rate() int { return s.rate }
func (s *fakeStream) Close() error {
	if s.onClose != nil {
		s.onClose()
	}
	s.closed.Store(true)
	return nil
}

type fakeBackend struct {
	rate       int
	openErr    error
	devices    []Device
	devicesErr error
	defDevice  Device
	defErr     error

	onChunk func([]float32)
	stream  *fakeStream
}

func (b *fakeBackend) Devices() ([]Device, error) {
	return b.devices, b.devicesErr
}

func (b *fakeBackend) DefaultDevice() (Device, error) {
	return b.defDevice, b.defErr
}

func (b *fakeBackend) Open(_ string, onChunk func([]float32)) (Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.onChunk = onChunk
	b.stream = &fakeStream{rate: b.rate}
	return b.stream, nil
}

func newTestRecorder(backend *fakeBackend) *Recorder {
	return NewRecorder(RecorderConfig{Backend: backend, DeviceID: "mic0"})
}

func TestRecorderStartWhileActiveFails(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.NoError(t, err)

	_, err = rec.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyCapturing)

	rec.Cancel()
}

func TestRecorderStopSurvivesChunkDeliveryDuringClose(t *testing.T) {
	backend := &fakeBackend{rate: TargetRate}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.NoError(t, err)
	backend.onChunk([]float32{0.5, 0.5, 0.5, 0.5})

	// The backend delivers chunks and request replies on one goroutine, so
	// a chunk can arrive while the stream close is waiting for its reply.
	// Teardown must not hold the recorder mutex across that close.
	backend.stream.onClose = func() {
		backend.onChunk([]float32{0.25, 0.25, 0.25, 0.25})
	}

	done := make(chan []float32, 1)
	go func() { done <- rec.Stop() }()

	select {
	case samples := <-done:
		require.Len(t, samples, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("stop stalled behind an in-flight chunk delivery")
	}
	require.True(t, backend.stream.closed.Load())
}

func TestRecorderStartFailureLeavesNoState(t *testing.T) {
	backend := &fakeBackend{rate: 16000, openErr: errors.New("device busy")}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.Error(t, err)

	backend.openErr = nil
	_, err = rec.Start(context.Background())
	require.NoError(t, err)
	rec.Cancel()
}

func TestRecorderRejectsUnusableRate(t *testing.T) {
	backend := &fakeBackend{rate: 0}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.ErrorIs(t, err, ErrFormatUnsupported)
	require.True(t, backend.stream.closed.Load())
}

func TestRecorderAccumulatesAcrossChunks(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.NoError(t, err)
	require.True(t, backend.stream.started.Load())

	backend.onChunk([]float32{0, 1, 2, 3})
	backend.onChunk([]float32{4, 5, 6, 7})

	samples := rec.Stop()
	require.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6}, samples)
}

func TestRecorderStopIsIdempotent(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.NoError(t, err)
	backend.onChunk([]float32{1, 2, 3, 4})

	first := rec.Stop()
	require.NotEmpty(t, first)

	require.Empty(t, rec.Stop())
	require.Empty(t, rec.Stop())
	require.True(t, backend.stream.closed.Load())
}

func TestRecorderCancelDiscardsBuffer(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.NoError(t, err)
	backend.onChunk([]float32{1, 2, 3, 4})

	rec.Cancel()
	rec.Cancel()

	require.Empty(t, rec.Stop())
	require.True(t, backend.stream.closed.Load())
}

func TestRecorderLevelStreamClosesOnStop(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	levels, err := rec.Start(context.Background())
	require.NoError(t, err)

	backend.onChunk([]float32{0.5, 0.5, 0.5, 0.5})
	rec.Stop()

	var got []float64
	for level := range levels {
		got = append(got, level)
	}
	require.Len(t, got, 1)
	require.Greater(t, got[0], 0.0)
}

func TestRecorderChunkAfterStopIsDropped(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	_, err := rec.Start(context.Background())
	require.NoError(t, err)
	rec.Stop()

	// The backend may still deliver a frame in flight during teardown.
	require.NotPanics(t, func() {
		backend.onChunk([]float32{1, 2, 3, 4})
	})
	require.Empty(t, rec.Stop())
}

func TestRecorderContextCancellationStopsCapture(t *testing.T) {
	backend := &fakeBackend{rate: 16000}
	rec := newTestRecorder(backend)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := rec.Start(ctx)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		return backend.stream.closed.Load()
	}, time.Second, 5*time.Millisecond)
}

func TestRecorderListDevicesFiltersUnusable(t *testing.T) {
	backend := &fakeBackend{devices: []Device{
		{ID: "mic0", Description: "Built-in Microphone", Default: true, Available: true},
		{ID: "", Description: "ghost"},
		{ID: "mon0", Description: ""},
		{ID: "usb1", Description: "USB Headset", Available: true},
	}}
	rec := newTestRecorder(backend)

	devices, err := rec.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.Equal(t, "mic0", devices[0].ID)
	require.Equal(t, "usb1", devices[1].ID)
}

func TestRecorderDisconnectFallsBackToDefault(t *testing.T) {
	backend := &fakeBackend{
		rate:      16000,
		defDevice: Device{ID: "builtin", Description: "Built-in Microphone"},
	}

	var notified atomic.Value
	rec := NewRecorder(RecorderConfig{
		Backend:  backend,
		DeviceID: "usb1",
		OnFallback: func(device string, err error) {
			require.NoError(t, err)
			notified.Store(device)
		},
	})

	_, err := rec.Start(context.Background())
	require.NoError(t, err)

	require.True(t, rec.HandleDeviceDisconnection())
	require.Equal(t, "builtin", rec.Device())
	require.Equal(t, "Built-in Microphone", notified.Load())
	require.True(t, backend.stream.closed.Load())
	require.Empty(t, rec.Stop())
}

func TestRecorderDisconnectWithoutDefaultReportsFailure(t *testing.T) {
	backend := &fakeBackend{rate: 16000, defErr: errors.New("no sources")}

	var fellBack atomic.Bool
	var gotErr atomic.Value
	rec := NewRecorder(RecorderConfig{
		Backend:  backend,
		DeviceID: "usb1",
		OnFallback: func(device string, err error) {
			fellBack.Store(true)
			gotErr.Store(err)
		},
	})

	require.False(t, rec.HandleDeviceDisconnection())
	require.True(t, fellBack.Load())
	require.Error(t, gotErr.Load().(error))
	require.Equal(t, "usb1", rec.Device())
}
