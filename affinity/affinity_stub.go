//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import "github.com/momentics/hioload-reactor/api"

func setAffinityPlatform(cpuID int) error {
	return api.ErrNotSupported
}

func currentCPUsPlatform() ([]int, error) {
	return nil, api.ErrNotSupported
}

func setCPUsPlatform(cpus []int) error {
	return api.ErrNotSupported
}
