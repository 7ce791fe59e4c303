// Package audio handles input device discovery and PCM capture for dictation.
package audio

import "errors"

// TargetRate is the sample rate every recognizer downstream expects.
const TargetRate = 16000

var (
	// ErrAlreadyCapturing is returned by Start while a capture is active.
	ErrAlreadyCapturing = errors.New("capture already in progress")
	// ErrFormatUnsupported is returned when the device cannot deliver a
	// sample stream convertible to mono 16 kHz float32.
	ErrFormatUnsupported = errors.New("capture format unsupported")
)

// Device describes one input source surfaced to murmur.
type Device struct {
	ID          string
	Description string
	Default     bool
	Available   bool
}

// Stream is one open capture session on a backend device.
type Stream interface {
	// Start begins delivering chunks to the callback passed to Open.
	Start()
	// Rate reports the native sample rate of the stream.
	Rate() int
	Close() error
}

// Backend abstracts the sound server so the recorder can be tested without
// a running PulseAudio daemon.
type Backend interface {
	Devices() ([]Device, error)
	DefaultDevice() (Device, error)
	// Open prepares a mono float32 stream on the given device. An empty
	// id means the server default. The callback runs on the backend's
	// delivery goroutine and must not block.
	Open(deviceID string, onChunk func([]float32)) (Stream, error)
}
