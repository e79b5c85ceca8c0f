//go:build linux

package rtsched

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// schedParam mirrors struct sched_param from sched.h; only the priority
// field is used by SCHED_RR/SCHED_FIFO.
type schedParam struct {
	Priority int32
}

// priority sits in the lower-middle of the usual 1-99 realtime range,
// leaving headroom above it for anything the host OS itself needs to
// preempt us for.
const priority = 10

func elevate() error {
	runtime.LockOSThread()

	tid := unix.Gettid()
	param := schedParam{Priority: priority}
	_, _, errno := unix.RawSyscall(unix.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(unix.SCHED_RR), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return fmt.Errorf("rtsched: sched_setscheduler: %w", errno)
	}
	return nil
}
