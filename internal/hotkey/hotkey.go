// Package hotkey turns the global push-to-talk chord into edge-triggered
// keydown/keyup channels.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"
)

// DefaultChord is the chord registered when the config does not name one.
const DefaultChord = "ctrl+shift+space"

// Chord is a parsed modifier+key combination.
type Chord struct {
	mods []hotkey.Modifier
	key  hotkey.Key
	text string
}

func (c Chord) String() string {
	return c.text
}

var modifierNames = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
	"alt":   hotkey.Mod1,
	"super": hotkey.Mod4,
	"meta":  hotkey.Mod4,
}

var keyNames = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
	"a":      hotkey.KeyA,
	"b":      hotkey.KeyB,
	"c":      hotkey.KeyC,
	"d":      hotkey.KeyD,
	"e":      hotkey.KeyE,
	"f":      hotkey.KeyF,
	"g":      hotkey.KeyG,
	"h":      hotkey.KeyH,
	"i":      hotkey.KeyI,
	"j":      hotkey.KeyJ,
	"k":      hotkey.KeyK,
	"l":      hotkey.KeyL,
	"m":      hotkey.KeyM,
	"n":      hotkey.KeyN,
	"o":      hotkey.KeyO,
	"p":      hotkey.KeyP,
	"q":      hotkey.KeyQ,
	"r":      hotkey.KeyR,
	"s":      hotkey.KeyS,
	"t":      hotkey.KeyT,
	"u":      hotkey.KeyU,
	"v":      hotkey.KeyV,
	"w":      hotkey.KeyW,
	"x":      hotkey.KeyX,
	"y":      hotkey.KeyY,
	"z":      hotkey.KeyZ,
	"f1":     hotkey.KeyF1,
	"f2":     hotkey.KeyF2,
	"f3":     hotkey.KeyF3,
	"f4":     hotkey.KeyF4,
	"f5":     hotkey.KeyF5,
	"f6":     hotkey.KeyF6,
	"f7":     hotkey.KeyF7,
	"f8":     hotkey.KeyF8,
	"f9":     hotkey.KeyF9,
	"f10":    hotkey.KeyF10,
	"f11":    hotkey.KeyF11,
	"f12":    hotkey.KeyF12,
}

// ParseChord reads a config rendering like "ctrl+shift+space". The last
// element is the key, everything before it a modifier.
func ParseChord(value string) (Chord, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		value = DefaultChord
	}

	parts := strings.Split(value, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	keyName := parts[len(parts)-1]
	key, ok := keyNames[keyName]
	if !ok {
		return Chord{}, fmt.Errorf("unknown key %q in chord %q", keyName, value)
	}

	modNames := parts[:len(parts)-1]
	if len(modNames) == 0 {
		return Chord{}, fmt.Errorf("chord %q needs at least one modifier", value)
	}
	mods := make([]hotkey.Modifier, 0, len(modNames))
	for _, name := range modNames {
		mod, ok := modifierNames[name]
		if !ok {
			return Chord{}, fmt.Errorf("unknown modifier %q in chord %q", name, value)
		}
		mods = append(mods, mod)
	}

	return Chord{mods: mods, key: key, text: value}, nil
}

// Listener owns one registered chord and republishes its press/release
// edges. Channel sends never block: a lagging consumer misses edges rather
// than stalling the event loop.
type Listener struct {
	keydown chan struct{}
	keyup   chan struct{}

	mu   sync.Mutex
	hk   *hotkey.Hotkey
	stop chan struct{}
}

// NewListener builds an unregistered Listener.
func NewListener() *Listener {
	return &Listener{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

// Register binds the chord, replacing any previous registration.
func (l *Listener) Register(chord Chord) error {
	l.unbind()

	hk := hotkey.New(chord.mods, chord.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register hotkey %q: %w", chord, err)
	}

	stop := make(chan struct{})
	l.mu.Lock()
	l.hk = hk
	l.stop = stop
	l.mu.Unlock()

	go l.forward(hk, stop)
	return nil
}

// Unregister releases the chord. Safe to call repeatedly.
func (l *Listener) Unregister() {
	l.unbind()
}

func (l *Listener) unbind() {
	l.mu.Lock()
	hk, stop := l.hk, l.stop
	l.hk, l.stop = nil, nil
	l.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if hk != nil {
		hk.Unregister()
	}
}

func (l *Listener) forward(hk *hotkey.Hotkey, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-hk.Keydown():
			select {
			case l.keydown <- struct{}{}:
			default:
			}
		case <-hk.Keyup():
			select {
			case l.keyup <- struct{}{}:
			default:
			}
		}
	}
}

// Keydown signals chord presses.
func (l *Listener) Keydown() <-chan struct{} {
	return l.keydown
}

// Keyup signals chord releases.
func (l *Listener) Keyup() <-chan struct{} {
	return l.keyup
}
