package session

import (
	"context"

	"github.com/murmurhq/murmur/internal/model"
	"github.com/murmurhq/murmur/internal/permission"
)

// Capture is the coordinator-facing subset of the audio recorder.
type Capture interface {
	Start(ctx context.Context) (<-chan float64, error)
	Stop() []float32
	Cancel()
}

// noopCapture preserves coordinator flow when no recorder is wired.
type noopCapture struct{}

func (noopCapture) Start(context.Context) (<-chan float64, error) {
	levels := make(chan float64)
	close(levels)
	return levels, nil
}

func (noopCapture) Stop() []float32 { return nil }
func (noopCapture) Cancel()         {}

// Recognizer turns a finished capture buffer into text.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, mode model.LanguageMode) (model.Transcription, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, samples []float32, mode model.LanguageMode) (model.Transcription, error)

func (f RecognizerFunc) Transcribe(ctx context.Context, samples []float32, mode model.LanguageMode) (model.Transcription, error) {
	return f(ctx, samples, mode)
}

// Inserter places recognized text into the focused window.
type Inserter interface {
	Insert(ctx context.Context, text string) error
}

// InserterFunc adapts a function to the Inserter interface.
type InserterFunc func(ctx context.Context, text string) error

func (f InserterFunc) Insert(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Permissions is the coordinator-facing subset of the permission checker.
type Permissions interface {
	Check() permission.Snapshot
}

// PermissionsFunc adapts a function to the Permissions interface.
type PermissionsFunc func() permission.Snapshot

func (f PermissionsFunc) Check() permission.Snapshot {
	return f()
}

func grantedPermissions() permission.Snapshot {
	return permission.Snapshot{
		Microphone:    permission.Authorized,
		Accessibility: permission.Authorized,
	}
}
