package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Outcome is the result of waiting for a download to settle.
type Outcome int

// Possible outcomes of AwaitCompletion.
const (
	Completed Outcome = iota + 1
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// DefaultMarker is the in-progress substring Firefox appends to partial files.
const DefaultMarker = "part"

// ChromeMarker is the in-progress substring Chrome appends to partial files.
const ChromeMarker = "crdownload"

// Monitor polls a directory for in-progress download markers.
type Monitor struct {
	markers []string
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	remove  func(path string) error
}

// NewMonitor builds a Monitor matching any of markers. Without markers it
// falls back to DefaultMarker.
func NewMonitor(markers ...string) *Monitor {
	normalized := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			normalized = append(normalized, m)
		}
	}
	if len(normalized) == 0 {
		normalized = []string{DefaultMarker}
	}
	return &Monitor{
		markers: normalized,
		now:     time.Now,
		sleep:   sleepContext,
		remove:  os.Remove,
	}
}

// AwaitCompletion waits with a Monitor matching DefaultMarker.
func AwaitCompletion(ctx context.Context, dir string, pollInterval, timeout time.Duration) (Outcome, error) {
	return NewMonitor().AwaitCompletion(ctx, dir, pollInterval, timeout)
}

// Markers returns the lowercased markers the monitor matches.
func (m *Monitor) Markers() []string {
	return append([]string(nil), m.markers...)
}

// IsPartial reports whether name carries an in-progress marker.
func (m *Monitor) IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range m.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Partials lists the marker-named entries currently in dir.
func (m *Monitor) Partials(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list download dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if m.IsPartial(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// AwaitCompletion lists dir until no entry carries a marker, returning
// Completed, or until timeout has elapsed, returning TimedOut. The last sleep is
// clipped to the deadline so the call never outlives timeout by more than one
// poll interval. Listing errors and context cancellation are returned as errors.
func (m *Monitor) AwaitCompletion(
	ctx context.Context,
	dir string,
	pollInterval time.Duration,
	timeout time.Duration,
) (Outcome, error) {
	if pollInterval <= 0 {
		return 0, errors.New("poll interval must be > 0")
	}
	if timeout <= 0 {
		return 0, errors.New("timeout must be > 0")
	}
	deadline := m.now().Add(timeout)
	for {
		partials, err := m.Partials(dir)
		if err != nil {
			return 0, err
		}
		if len(partials) == 0 {
			return Completed, nil
		}
		remaining := deadline.Sub(m.now())
		if remaining <= 0 {
			return TimedOut, nil
		}
		wait := min(pollInterval, remaining)
		if err := m.sleep(ctx, wait); err != nil {
			return 0, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("await download: %w", ctx.Err())
	}
}
