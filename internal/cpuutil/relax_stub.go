//go:build !amd64

package cpuutil

// Relax is a no-op on architectures without a dedicated spin-wait hint.
func Relax() {}
