//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux implementation via sched_setaffinity on the calling thread.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-writer/api"
	"golang.org/x/sys/unix"
)

func setAffinityPlatform(cpuID int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	if !prev.IsSet(cpuID) {
		return nil, api.WrapError(api.ErrCodeInvalidArgument, "affinity: cpu not in the allowed set", api.ErrInvalidArgument).WithContext("cpu", cpuID)
	}
	var set unix.CPUSet
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return func() { _ = unix.SchedSetaffinity(0, &prev) }, nil
}
