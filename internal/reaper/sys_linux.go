//go:build linux

package reaper

import (
	"fmt"
	"os"
	"syscall"

	"github.com/prometheus/procfs"
)

func selfPID() int { return os.Getpid() }

func selfUID() uint64 { return uint64(os.Getuid()) } // #nosec G115 -- uid is non-negative on linux

func listProcesses() ([]Process, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list procs: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// Exited between listing and reading.
			continue
		}
		proc := Process{PID: stat.PID, PPID: stat.PPID, Comm: stat.Comm, State: stat.State}
		if status, err := p.NewStatus(); err == nil {
			proc.UID = status.UIDs[0]
		}
		out = append(out, proc)
	}
	return out, nil
}

func reapChild(pid int) error {
	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil); err != nil {
		return fmt.Errorf("wait4 %d: %w", pid, err)
	}
	return nil
}

func killProcess(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}
