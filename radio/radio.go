// Package radio defines the hardware-independent boundary the rest of
// uNET drives the transceiver through. It generalizes the teacher
// driver's Device (a single nRF24L01+ instance) into an interface so
// that netcore can be built and tested against radio/simradio and only
// wired to radio/nrf24 at the cmd/ binaries.
package radio

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned when an operation is attempted before
	// PowerUp/Reset has completed.
	ErrNotReady = errors.New("radio: not ready")
	// ErrTxFailed is returned when a Transmit requesting an ack saw no
	// ack within the radio's own retry budget.
	ErrTxFailed = errors.New("radio: transmit failed (no ack)")
	// ErrOverflow is returned by Receive when the RX FIFO was drained
	// while already full, meaning at least one frame was lost upstream
	// of this call.
	ErrOverflow = errors.New("radio: rx fifo overflow")
)

// Status reports what WaitForInterrupt woke up for.
type Status struct {
	RxReady  bool
	TxOk     bool
	TxFailed bool
	Overflow bool
}

// Radio is the boundary the Reactor drives. Implementations must be
// safe for the interrupt-bridging goroutine and the command-issuing
// goroutine to use concurrently; a single internal mutex per
// implementation is the expected shape (per radio/nrf24's adaptation of
// the teacher's Device).
type Radio interface {
	// Reset brings the radio to a known idle state. Must be called
	// once before any other method.
	Reset(ctx context.Context) error

	// Transmit sends frame to the currently configured peer. When
	// wantAck is true, Transmit blocks (bounded by ctx) for the
	// radio's own ack/retry cycle and returns ErrTxFailed if it is
	// exhausted without an ack.
	Transmit(ctx context.Context, frame []byte, wantAck bool) error

	// Receive returns the oldest buffered frame, if any, without
	// blocking. ok is false when the RX FIFO is empty.
	Receive() (frame []byte, ok bool, err error)

	// WaitForInterrupt blocks until the radio raises its IRQ line (new
	// RX data, a TX outcome, or a FIFO overflow) or ctx is done.
	WaitForInterrupt(ctx context.Context) (Status, error)

	// SetAutoAck enables or disables automatic acknowledgment of
	// received frames at the hardware level.
	SetAutoAck(enabled bool) error

	// MTU is the largest single frame this backing radio can carry,
	// which may be smaller than wire.MaxOnAir; netcore refuses to
	// start if its configured frame budget exceeds it.
	MTU() int

	// RSSI is the last observed signal strength, in the hardware's own
	// units; backends that cannot measure it return 0.
	RSSI() int8
}
