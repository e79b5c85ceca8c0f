package netcore

import "errors"

// Sentinel errors mirror the nine error kinds in spec §7, checked with
// errors.Is the way nrf24 wraps ErrPkg/ErrTimeout/ErrMaxRetries.
var (
	ErrPayloadOverflow   = errors.New("netcore: payload exceeds maximum size")
	ErrNoRouteAvailable  = errors.New("netcore: no route available")
	ErrRouteNodeError    = errors.New("netcore: all retries to neighbor failed")
	ErrRouteAttemptsError = errors.New("netcore: every candidate blacklisted")
	ErrPacketLife        = errors.New("netcore: packet life exceeded maximum depth")
	ErrRouteFrame        = errors.New("netcore: malformed frame reached routing state machine")
	ErrCRC               = errors.New("netcore: CRC mismatch")
	ErrBufferOverflow     = errors.New("netcore: rx fifo overflow")
	ErrTXTimeout          = errors.New("netcore: tx semaphore timeout")

	// ErrMTUTooSmall is returned by core.New when the backing radio's
	// reported MTU is below MaxOnAir, the 127-byte on-air ceiling.
	ErrMTUTooSmall = errors.New("netcore: configured frame budget exceeds radio MTU")
)
