// Package transcript normalizes raw recognizer output before insertion.
package transcript

import (
	"regexp"
	"strings"
)

// Recognizers emit non-speech annotations on silent or noisy audio, e.g.
// "[BLANK_AUDIO]", "(music)", "[ Silence ]". These are hallucinations from
// the insertion point of view and must never reach the focused window.
var annotationPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

var noiseMarkers = map[string]struct{}{
	"blank_audio": {},
	"blank audio": {},
	"silence":     {},
	"music":       {},
	"noise":       {},
	"applause":    {},
	"laughter":    {},
	"laughs":      {},
	"inaudible":   {},
	"speaking in foreign language": {},
}

// Clean strips non-speech annotations and collapses whitespace. The result
// may be empty; callers decide what an empty transcription means.
func Clean(raw string) string {
	stripped := annotationPattern.ReplaceAllStringFunc(raw, func(match string) string {
		inner := strings.ToLower(strings.TrimSpace(strings.Trim(match, "[]()")))
		if _, ok := noiseMarkers[inner]; ok {
			return ""
		}
		return match
	})
	stripped = strings.ReplaceAll(stripped, "♪", "")
	return strings.Join(strings.Fields(stripped), " ")
}

// Join cleans each recognized segment and assembles them into one line.
func Join(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		cleaned := Clean(segment)
		if cleaned == "" {
			continue
		}
		parts = append(parts, cleaned)
	}
	return strings.Join(parts, " ")
}
