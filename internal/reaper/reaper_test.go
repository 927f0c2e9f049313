package reaper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReaper(procs []Process) (*Reaper, *[]string) {
	var calls []string
	r := New(nil, zap.NewNop())
	r.self = 100
	r.uid = 1000
	r.list = func() ([]Process, error) { return procs, nil }
	r.reap = func(pid int) error {
		calls = append(calls, "reap")
		if pid == 666 {
			return errors.New("echild")
		}
		return nil
	}
	r.kill = func(int) error {
		calls = append(calls, "kill")
		return nil
	}
	return r, &calls
}

func TestNewNormalizesFamily(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultFamily, New(nil, nil).Family())
	assert.Equal(t, []string{"chrome", "firefox"}, New([]string{" Chrome", "firefox", "CHROME", ""}, nil).Family())
}

func TestMatches(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	assert.True(t, r.Matches("chrome"))
	assert.True(t, r.Matches("Chromium-browse"))
	assert.True(t, r.Matches("headless_shell"))
	assert.False(t, r.Matches("bash"))
}

func TestPlan(t *testing.T) {
	t.Parallel()

	r, _ := newTestReaper(nil)
	procs := []Process{
		{PID: 100, PPID: 1, Comm: "breachwatch", State: "S", UID: 1000},
		{PID: 201, PPID: 100, Comm: "chrome", State: "Z", UID: 1000},
		{PID: 202, PPID: 55, Comm: "chrome", State: "Z", UID: 1000},
		{PID: 203, PPID: 1, Comm: "chrome", State: "S", UID: 1000},
		{PID: 204, PPID: 1, Comm: "chrome", State: "S", UID: 0},
		{PID: 205, PPID: 1, Comm: "sshd", State: "S", UID: 1000},
		{PID: 206, PPID: 100, Comm: "chrome", State: "S", UID: 1000},
		{PID: 207, PPID: 1, Comm: "headless_shell", State: "Z", UID: 1000},
	}

	zombies, orphans := r.Plan(procs)
	require.Len(t, zombies, 1)
	assert.Equal(t, 201, zombies[0].PID)
	require.Len(t, orphans, 1)
	assert.Equal(t, 203, orphans[0].PID)
}

func TestSweep(t *testing.T) {
	t.Parallel()

	r, calls := newTestReaper([]Process{
		{PID: 201, PPID: 100, Comm: "chrome", State: "Z", UID: 1000},
		{PID: 666, PPID: 100, Comm: "chrome", State: "Z", UID: 1000},
		{PID: 203, PPID: 1, Comm: "chrome", State: "S", UID: 1000},
	})

	rep := r.Sweep(context.Background())
	assert.Equal(t, []int{201}, rep.Reaped)
	assert.Equal(t, []int{203}, rep.Killed)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, []string{"reap", "reap", "kill"}, *calls)
}

func TestSweepListingFailureIsNoop(t *testing.T) {
	t.Parallel()

	r, calls := newTestReaper(nil)
	r.list = func() ([]Process, error) { return nil, errors.New("no /proc") }

	rep := r.Sweep(context.Background())
	assert.Empty(t, rep.Reaped)
	assert.Empty(t, rep.Killed)
	assert.Zero(t, rep.Errors)
	assert.Empty(t, *calls)
}

func TestSweepStopsKillingWhenCanceled(t *testing.T) {
	t.Parallel()

	r, calls := newTestReaper([]Process{
		{PID: 203, PPID: 1, Comm: "chrome", State: "S", UID: 1000},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := r.Sweep(ctx)
	assert.Empty(t, rep.Killed)
	assert.Empty(t, *calls)
}
