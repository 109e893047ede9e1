// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU affinity for loop goroutines. Platform-specific implementations are in
// affinity_linux.go and affinity_other.go.

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to cpuID. The returned function undoes both. A negative cpuID only locks
// the thread.
func Pin(cpuID int) (func(), error) {
	runtime.LockOSThread()
	if cpuID < 0 {
		return runtime.UnlockOSThread, nil
	}
	restore, err := setAffinityPlatform(cpuID)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, nil
}
