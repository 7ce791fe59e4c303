package model

import (
	"fmt"
	"strings"
)

type languageKind int

const (
	languageAuto languageKind = iota
	languageSpecific
	languagePinned
)

// LanguageMode controls how the spoken language is determined. Auto asks
// the engine to identify it per utterance; Specific requests one language
// but keeps the engine's detection in the result; Pinned forces the result
// language regardless of what the engine reports.
type LanguageMode struct {
	kind languageKind
	lang string
}

func AutoLanguage() LanguageMode {
	return LanguageMode{kind: languageAuto}
}

func SpecificLanguage(code string) LanguageMode {
	return LanguageMode{kind: languageSpecific, lang: code}
}

func PinnedLanguage(code string) LanguageMode {
	return LanguageMode{kind: languagePinned, lang: code}
}

// ParseLanguageMode reads the config rendering: "auto", a bare ISO 639-1
// code like "en", or "pinned:en".
func ParseLanguageMode(value string) (LanguageMode, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch {
	case value == "" || value == "auto":
		return AutoLanguage(), nil
	case strings.HasPrefix(value, "pinned:"):
		code := strings.TrimPrefix(value, "pinned:")
		if !validLanguageCode(code) {
			return LanguageMode{}, fmt.Errorf("invalid pinned language %q", code)
		}
		return PinnedLanguage(code), nil
	case validLanguageCode(value):
		return SpecificLanguage(value), nil
	default:
		return LanguageMode{}, fmt.Errorf("invalid language mode %q", value)
	}
}

func validLanguageCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Request renders the mode as an engine request.
func (m LanguageMode) Request() (language string, detect bool) {
	if m.kind == languageAuto {
		return "", true
	}
	return m.lang, false
}

// Resolve picks the result language from what the engine reported.
func (m LanguageMode) Resolve(detected string) string {
	if m.kind == languagePinned {
		return m.lang
	}
	return detected
}

func (m LanguageMode) String() string {
	switch m.kind {
	case languageAuto:
		return "auto"
	case languagePinned:
		return "pinned:" + m.lang
	default:
		return m.lang
	}
}
