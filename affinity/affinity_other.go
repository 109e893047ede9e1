//go:build !linux
// +build !linux

// File: affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>

package affinity

import "github.com/momentics/hioload-writer/api"

func setAffinityPlatform(cpuID int) (func(), error) {
	return nil, api.ErrNotSupported
}
