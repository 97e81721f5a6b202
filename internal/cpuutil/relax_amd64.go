//go:build amd64

package cpuutil

// Relax emits the PAUSE instruction, hinting the CPU that the caller is in a
// spin-wait loop. Implemented in relax_amd64.s.
func Relax()
