package model

import "context"

// Segment is one recognized span of speech.
type Segment struct {
	Text     string
	Language string
}

// Handle is a loaded model ready for inference.
type Handle interface {
	// Transcribe runs batch recognition over mono 16 kHz float32 samples.
	// When detect is true the engine identifies the spoken language and
	// reports it on the segments; otherwise language names the expected
	// input language.
	Transcribe(ctx context.Context, samples []float32, language string, detect bool) ([]Segment, error)
	Close() error
}

// Engine abstracts the inference backend so the lifecycle manager can be
// tested without a running engine process.
type Engine interface {
	// Download fetches a model artifact to dest, reporting byte progress.
	// It returns the final on-disk path.
	Download(ctx context.Context, url, dest string, onProgress func(done, total int64)) (string, error)
	// Load instantiates the model at path.
	Load(ctx context.Context, path string) (Handle, error)
}
