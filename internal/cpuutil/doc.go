// Package cpuutil wraps the thread-affinity and spin-wait primitives the
// busy-polling loops depend on. Both loops pin their goroutine to a dedicated
// core and call Relax between empty polls so hyperthread siblings and the
// memory pipeline are not starved.
package cpuutil
