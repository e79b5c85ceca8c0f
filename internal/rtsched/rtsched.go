// Package rtsched gives the Timer Tick goroutine a best-effort shot at
// running with realtime scheduling priority, approximating the original
// firmware's fixed-priority preemptive scheduler on a Linux host.
//
// Elevate is advisory. Callers must treat its error as informational: on
// any platform, permission level, or build where it cannot be honored,
// the Go scheduler's ordinary fairness is what actually runs the goroutine.
package rtsched

// Elevate pins the calling goroutine to its own OS thread and requests
// round-robin realtime scheduling for it. Call it once, from the
// goroutine that should be elevated, before it starts its periodic work.
func Elevate() error {
	return elevate()
}
