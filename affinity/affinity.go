// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package affinity pins OS threads to logical CPUs. Only Linux implements
// it; other platforms return api.ErrNotSupported.
package affinity

// SetAffinity pins the calling OS thread to a given logical CPU. The caller
// must hold runtime.LockOSThread for the pin to stay with its goroutine.
// On unsupported platforms returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// CurrentCPUs returns the logical CPUs the calling thread may run on.
func CurrentCPUs() ([]int, error) {
	return currentCPUsPlatform()
}

// Pin pins the calling thread to cpuID and returns a function restoring
// the previous mask. Both must run on the same locked OS thread.
func Pin(cpuID int) (restore func(), err error) {
	prev, err := CurrentCPUs()
	if err != nil {
		return func() {}, err
	}
	if err := SetAffinity(cpuID); err != nil {
		return func() {}, err
	}
	return func() { _ = setCPUsPlatform(prev) }, nil
}
