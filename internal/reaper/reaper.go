// Package reaper cleans up browser processes left behind by a robot session.
//
// After the browser context is canceled, Chrome helper processes that lost
// their parent are re-parented to init and zombie children of this process
// may remain until waited on. Sweep handles both cases using /proc.
package reaper

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// DefaultFamily is the set of command names treated as browser processes.
var DefaultFamily = []string{"chrome", "chromium", "headless_shell"}

// Process is the subset of /proc/<pid> state the reaper inspects.
type Process struct {
	PID   int
	PPID  int
	Comm  string
	State string
	UID   uint64
}

// Zombie reports whether the process has exited but not been waited on.
func (p Process) Zombie() bool {
	return p.State == "Z"
}

// Report summarizes one sweep.
type Report struct {
	Reaped []int
	Killed []int
	Errors int
}

// Reaper finds and cleans up leftover browser processes.
type Reaper struct {
	family []string
	self   int
	uid    uint64
	logger *zap.Logger

	list func() ([]Process, error)
	reap func(pid int) error
	kill func(pid int) error
}

// New creates a Reaper for the given command-name family. An empty family
// falls back to DefaultFamily.
func New(family []string, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	var norm []string
	for _, f := range family {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !slices.Contains(norm, f) {
			norm = append(norm, f)
		}
	}
	if len(norm) == 0 {
		norm = slices.Clone(DefaultFamily)
	}
	return &Reaper{
		family: norm,
		self:   selfPID(),
		uid:    selfUID(),
		logger: logger,
		list:   listProcesses,
		reap:   reapChild,
		kill:   killProcess,
	}
}

// Family returns the normalized command-name family.
func (r *Reaper) Family() []string {
	return slices.Clone(r.family)
}

// Matches reports whether comm belongs to the browser family.
func (r *Reaper) Matches(comm string) bool {
	comm = strings.ToLower(comm)
	for _, f := range r.family {
		if strings.Contains(comm, f) {
			return true
		}
	}
	return false
}

// Plan splits procs into zombie children to reap and orphaned browser
// processes owned by the current user to kill.
func (r *Reaper) Plan(procs []Process) (zombies, orphans []Process) {
	for _, p := range procs {
		switch {
		case p.PID == r.self:
		case p.Zombie() && p.PPID == r.self:
			zombies = append(zombies, p)
		case !p.Zombie() && p.PPID == 1 && p.UID == r.uid && r.Matches(p.Comm):
			orphans = append(orphans, p)
		}
	}
	return zombies, orphans
}

// Sweep reaps zombie children and kills orphaned browser processes. It is
// best effort: failures are logged and counted, never returned.
func (r *Reaper) Sweep(ctx context.Context) Report {
	var rep Report
	procs, err := r.list()
	if err != nil {
		r.logger.Debug("process listing unavailable", zap.Error(err))
		return rep
	}
	zombies, orphans := r.Plan(procs)

	for _, p := range zombies {
		if err := r.reap(p.PID); err != nil {
			rep.Errors++
			r.logger.Warn("reap zombie failed", zap.Int("pid", p.PID), zap.String("comm", p.Comm), zap.Error(err))
			continue
		}
		rep.Reaped = append(rep.Reaped, p.PID)
	}
	for _, p := range orphans {
		if ctx.Err() != nil {
			break
		}
		if err := r.kill(p.PID); err != nil {
			rep.Errors++
			r.logger.Warn("kill orphaned browser failed", zap.Int("pid", p.PID), zap.String("comm", p.Comm), zap.Error(err))
			continue
		}
		rep.Killed = append(rep.Killed, p.PID)
	}

	if len(rep.Reaped)+len(rep.Killed)+rep.Errors > 0 {
		r.logger.Info("browser processes swept",
			zap.Ints("reaped", rep.Reaped),
			zap.Ints("killed", rep.Killed),
			zap.Int("errors", rep.Errors),
		)
	}
	return rep
}
