//go:build !linux

package reaper

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("process sweeping requires /proc")

func selfPID() int { return os.Getpid() }

func selfUID() uint64 { return 0 }

func listProcesses() ([]Process, error) { return nil, errUnsupported }

func reapChild(int) error { return errUnsupported }

func killProcess(int) error { return errUnsupported }
