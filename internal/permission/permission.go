// Package permission probes the capabilities murmur needs before a session
// may start: microphone capture and synthetic keystroke injection.
package permission

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jfreymuth/pulse"
)

// Status is the tri-state result of one capability probe.
type Status string

const (
	Undetermined Status = "undetermined"
	Denied       Status = "denied"
	Authorized   Status = "authorized"
)

// Snapshot holds the capability statuses observed at one point in time.
type Snapshot struct {
	Microphone    Status
	Accessibility Status
}

// AllGranted reports whether a dictation session may start.
func (s Snapshot) AllGranted() bool {
	return s.Microphone == Authorized && s.Accessibility == Authorized
}

// Missing names the capabilities that block a session, for user-facing
// error messages.
func (s Snapshot) Missing() []string {
	var missing []string
	if s.Microphone != Authorized {
		missing = append(missing, "microphone")
	}
	if s.Accessibility != Authorized {
		missing = append(missing, "accessibility")
	}
	return missing
}

// Describe renders the snapshot for status output.
func (s Snapshot) Describe() string {
	return "microphone: " + string(s.Microphone) + ", accessibility: " + string(s.Accessibility)
}

// CheckerConfig wires a Checker. Probes default to the real system checks.
type CheckerConfig struct {
	Microphone    func() Status
	Accessibility func() Status
	Interval      time.Duration
	Logger        *slog.Logger
}

// Checker runs capability probes on demand and on a poll loop.
type Checker struct {
	micProbe    func() Status
	accessProbe func() Status
	interval    time.Duration
	logger      *slog.Logger
}

// NewChecker builds a Checker around cfg.
func NewChecker(cfg CheckerConfig) *Checker {
	mic := cfg.Microphone
	if mic == nil {
		mic = probeMicrophone
	}
	access := cfg.Accessibility
	if access == nil {
		access = probeAccessibility
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{micProbe: mic, accessProbe: access, interval: interval, logger: logger}
}

// Check probes both capabilities now.
func (c *Checker) Check() Snapshot {
	return Snapshot{
		Microphone:    c.micProbe(),
		Accessibility: c.accessProbe(),
	}
}

// Watch polls until ctx is done, invoking onChange whenever the snapshot
// differs from the previous one. The initial snapshot is always reported.
func (c *Checker) Watch(ctx context.Context, onChange func(Snapshot)) {
	current := c.Check()
	onChange(current)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := c.Check()
			if next == current {
				continue
			}
			c.logger.Info("permission change",
				"from", current.Describe(), "to", next.Describe())
			current = next
			onChange(next)
		}
	}
}

// probeMicrophone checks that a Pulse server is reachable and exposes a
// default source.
func probeMicrophone() Status {
	client, err := pulse.NewClient(pulse.ClientApplicationName("murmur"))
	if err != nil {
		return Undetermined
	}
	defer client.Close()
	if _, err := client.DefaultSource(); err != nil {
		return Denied
	}
	return Authorized
}

// probeAccessibility checks write access to uinput, which keystroke
// injection needs.
func probeAccessibility() Status {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY, 0)
	if err == nil {
		_ = f.Close()
		return Authorized
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Undetermined
	}
	if errors.Is(err, fs.ErrPermission) || strings.Contains(err.Error(), "operation not permitted") {
		return Denied
	}
	return Undetermined
}
