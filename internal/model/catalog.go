// Package model owns the recognition model lifecycle: the downloadable
// catalog, per-model status, download/load/switch/delete, and transcription
// over the loaded model.
package model

import "fmt"

// Info describes one downloadable model tier. Sizes are estimates used for
// progress when the server omits Content-Length; the authoritative number
// is whatever the download delivers.
type Info struct {
	ID        string
	Name      string
	Filename  string
	URL       string
	SizeBytes int64
}

// DefaultID is the tier selected on first run.
const DefaultID = "base"

const ggmlBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var catalog = []Info{
	{
		ID:        "tiny",
		Name:      "Tiny (fastest, lowest accuracy)",
		Filename:  "ggml-tiny.bin",
		URL:       ggmlBase + "ggml-tiny.bin",
		SizeBytes: 75 * 1024 * 1024,
	},
	{
		ID:        "base",
		Name:      "Base (balanced)",
		Filename:  "ggml-base.bin",
		URL:       ggmlBase + "ggml-base.bin",
		SizeBytes: 142 * 1024 * 1024,
	},
	{
		ID:        "small",
		Name:      "Small (better accuracy)",
		Filename:  "ggml-small.bin",
		URL:       ggmlBase + "ggml-small.bin",
		SizeBytes: 466 * 1024 * 1024,
	},
	{
		ID:        "medium",
		Name:      "Medium (high accuracy, slower)",
		Filename:  "ggml-medium.bin",
		URL:       ggmlBase + "ggml-medium.bin",
		SizeBytes: 1533 * 1024 * 1024,
	},
	{
		ID:        "large",
		Name:      "Large (best accuracy, slowest)",
		Filename:  "ggml-large-v3.bin",
		URL:       ggmlBase + "ggml-large-v3.bin",
		SizeBytes: 2967 * 1024 * 1024,
	},
}

// Catalog returns the static model tiers in display order.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves a tier id.
func Lookup(id string) (Info, error) {
	for _, info := range catalog {
		if info.ID == id {
			return info, nil
		}
	}
	return Info{}, fmt.Errorf("model %q: %w", id, ErrNotFound)
}
