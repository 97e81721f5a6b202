//go:build !linux

package cpuutil

import "runtime"

// Pin locks the calling goroutine to its OS thread. Core affinity is only
// available on Linux; elsewhere the core argument is ignored.
func Pin(core int) error {
	runtime.LockOSThread()
	return nil
}
