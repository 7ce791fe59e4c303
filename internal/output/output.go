// Package output inserts transcribed text into the focused window by
// setting the clipboard and dispatching a synthetic paste chord.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// warmupDelay gives the kernel time to expose the virtual keyboard created
// by the first NewKeyBonding before any key event is sent through it.
const warmupDelay = 2 * time.Second

// settleDelay lets clipboard managers observe the new content before the
// paste chord fires.
const settleDelay = 50 * time.Millisecond

// Inserter types text by clipboard + ctrl+v.
type Inserter struct {
	logger *slog.Logger

	once  sync.Once
	kb    keybd_event.KeyBonding
	kbErr error
}

// NewInserter builds an Inserter.
func NewInserter(logger *slog.Logger) *Inserter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Inserter{logger: logger}
}

// Warm prepares the virtual keyboard ahead of the first insertion. Call it
// from a startup goroutine so the first dictation does not pay the delay.
func (i *Inserter) Warm() error {
	return i.ensureKeyboard()
}

func (i *Inserter) ensureKeyboard() error {
	i.once.Do(func() {
		i.kb, i.kbErr = keybd_event.NewKeyBonding()
		if i.kbErr == nil {
			time.Sleep(warmupDelay)
		}
	})
	if i.kbErr != nil {
		return fmt.Errorf("prepare keystroke injection: %w", i.kbErr)
	}
	return nil
}

// Insert places text on the clipboard and pastes it into the focused
// window. Empty text is a no-op.
func (i *Inserter) Insert(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	if err := i.ensureKeyboard(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
	}

	i.kb.SetKeys(keybd_event.VK_V)
	i.kb.HasCTRL(true)
	if err := i.kb.Launching(); err != nil {
		return fmt.Errorf("dispatch paste chord: %w", err)
	}

	i.logger.Info("text inserted", "chars", len(text))
	return nil
}

// Copy sets the clipboard without pasting. Used as the fallback when
// insertion fails.
func Copy(text string) error {
	if text == "" {
		return nil
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}
