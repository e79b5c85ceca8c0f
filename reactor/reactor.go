// Package reactor implements the Radio Reactor (spec §4.1): the single
// point of contact with the transceiver. It translates the radio's
// interrupt-driven Status into typed events mac.Parser and nwk.Router
// select on, in place of the original's ISR-to-task semaphore pair
// (macACK boolean + TX/RX semaphores) — grounded on nrf24's
// Watch(FallingEdge, handler) → non-blocking buffered channel send
// pattern, generalized from one GPIO edge watch into the Reactor's own
// run loop, and on npi_linkmgr.go's RunNPI goroutine shape (read
// status, branch TX/RX, publish).
package reactor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/radio"
)

// EventKind distinguishes the two completion events the reactor
// publishes, replacing the original's two booleans plus a shared
// macACK flag with one typed enum, per spec §9's ISR-to-task design
// note.
type EventKind int

const (
	EventRX EventKind = iota
	EventTX
)

// Event is one reactor-published completion.
type Event struct {
	Kind EventKind

	// RX fields.
	Frame []byte
	RSSI  int8
	LQI   byte

	// TX fields.
	Acked bool
}

// Reactor owns the radio and the single IRQ-to-event bridge for it.
type Reactor struct {
	r      radio.Radio
	log    netlog.Logger
	events chan Event

	pendingAck atomic.Bool // set by a sender before Transmit, per spec's PacketPendingAck

	mu      sync.Mutex
	overbuf uint32
}

// New wires r into a Reactor. events is the channel RX/TX completions
// are published on; it should be large enough to absorb one wake
// cycle's worth of frames (spec §5: the MAC Parser drains everything
// currently in the FIFO before re-suspending).
func New(r radio.Radio, log netlog.Logger, events chan Event) *Reactor {
	return &Reactor{r: r, log: netlog.OrNop(log), events: events}
}

// SetPendingAck records that the next TX completion this Reactor
// observes was from a send awaiting an ACK, mirroring the original's
// per-send PacketPendingAck flag. Callers set it immediately before
// radio.Radio.Transmit(ctx, frame, true).
func (re *Reactor) SetPendingAck(pending bool) {
	re.pendingAck.Store(pending)
}

// Run drives the reactor loop until ctx is done: wait for an
// interrupt, classify it, publish the corresponding Event. It is meant
// to run in its own goroutine, started at the Radio Reactor's nominal
// highest scheduling priority (spec §5).
func (re *Reactor) Run(ctx context.Context) {
	for {
		status, err := re.r.WaitForInterrupt(ctx)
		if err != nil {
			return
		}

		if status.TxOk || status.TxFailed {
			re.handleTX(status)
		}
		if status.RxReady {
			re.drainRX(status)
		}
		if status.Overflow {
			re.handleOverflow()
		}
	}
}

func (re *Reactor) handleTX(status radio.Status) {
	if !re.pendingAck.Load() {
		return
	}
	re.pendingAck.Store(false)
	re.publish(Event{Kind: EventTX, Acked: status.TxOk})
}

// drainRX pulls every frame currently buffered, per spec §5's "consume
// every frame in the FIFO in one wake cycle before re-suspending" rule,
// tagging each with the RSSI observed at the moment it was delivered.
func (re *Reactor) drainRX(status radio.Status) {
	for {
		frame, ok, err := re.r.Receive()
		if !ok {
			return
		}
		if err == radio.ErrOverflow {
			re.handleOverflow()
		}
		re.publish(Event{
			Kind:  EventRX,
			Frame: frame,
			RSSI:  re.r.RSSI(),
			LQI:   0,
		})
	}
}

func (re *Reactor) handleOverflow() {
	re.mu.Lock()
	re.overbuf++
	n := re.overbuf
	re.mu.Unlock()
	re.log.Warn("rx fifo overflow, disabling auto-ack until drained")
	re.r.SetAutoAck(false)
	_ = n
}

// Overbuf reports the running overflow count (spec §4.1's overbuf
// counter).
func (re *Reactor) Overbuf() uint32 {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.overbuf
}

// ResumeAutoAck re-enables hardware auto-ACK once the consumer has
// drained the backlog, clearing the condition handleOverflow entered.
func (re *Reactor) ResumeAutoAck() error {
	return re.r.SetAutoAck(true)
}

func (re *Reactor) publish(e Event) {
	select {
	case re.events <- e:
	default:
		re.log.Warn("reactor event channel full, dropping event")
	}
}
