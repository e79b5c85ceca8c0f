package nwk

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/reactor"
	"github.com/unet-mesh/unet/wire"
)

// Config bundles the timing/retry constants spec §6 fixes per build.
type Config struct {
	TXRetries   int // NWK_TX_RETRIES: 3, or 50 under the Contiki-MAC option
	TXTimeout   time.Duration
	SelfShort   uint16
	SelfPAN     uint16
	Coordinator bool
}

// Router is the NWK Router (spec §4.3): it owns the neighbor table,
// the up-route cache, this node's depth/parent/sequence state, and
// the four origination APIs. mac.Parser hands it decoded Data packets
// on Parser.Data; Router answers MAC command Associate() calls via
// the AssociationHandler it exposes to mac.Responder.
type Router struct {
	Neighbors *netcore.NeighborTable
	UpRoutes  *netcore.UpRouteCache
	Stats     *netcore.Stats

	// AppRX receives every packet the routing state machine decides is
	// destined for this node's application layer (spec §4.3.4's
	// call_app_layer state).
	AppRX chan *netcore.Packet

	radio  radio.Radio
	reac   *reactor.Reactor
	txAcks <-chan reactor.Event
	log    netlog.Logger
	cfg    Config

	mu             sync.Mutex
	depth          byte
	parent         uint16
	seq            byte
	rng            *rand.Rand
	watchdog       int // DepthWatchdog, spec §4.4
	nextChildShort uint16
}

// New builds a Router. txAcks must receive every reactor.EventTX the
// owning core.Core's demux loop observes; reac is used to arm
// SetPendingAck immediately before each Transmit.
func New(neighbors *netcore.NeighborTable, upRoutes *netcore.UpRouteCache, stats *netcore.Stats, r radio.Radio, reac *reactor.Reactor, txAcks <-chan reactor.Event, log netlog.Logger, cfg Config) *Router {
	depth := byte(netcore.RouteLost)
	if cfg.Coordinator {
		depth = 0
	}
	if cfg.TXRetries == 0 {
		cfg.TXRetries = 3
	}
	if cfg.TXTimeout == 0 {
		cfg.TXTimeout = 50 * time.Millisecond
	}
	return &Router{
		Neighbors: neighbors,
		UpRoutes:  upRoutes,
		Stats:     stats,
		AppRX:     make(chan *netcore.Packet, 8),
		radio:     r,
		reac:      reac,
		txAcks:    txAcks,
		log:       netlog.OrNop(log),
		cfg:       cfg,
		depth:     depth,
		parent:    netcore.ShortAddrEmpty,
		rng:       rand.New(rand.NewSource(int64(cfg.SelfShort) + 1)),
	}
}

// Depth returns this node's current depth (netcore.RouteLost if it
// has none).
func (r *Router) Depth() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.depth
}

// Parent returns the current parent's short address, or
// netcore.ShortAddrEmpty.
func (r *Router) Parent() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parent
}

// DepthWatchdog returns the monotonic counter ticker.Ticker maintains
// (spec §4.4's GetDepthWatchdog()).
func (r *Router) DepthWatchdog() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watchdog
}

// TickDepthWatchdog increments the counter once per tick; ticker.Ticker
// calls this, and UpdateDepth resets it whenever depth changes.
func (r *Router) TickDepthWatchdog() {
	r.mu.Lock()
	r.watchdog++
	r.mu.Unlock()
}

// nextSeq increments SequenceNumber, wrapping 0 -> 1 since 0 is
// reserved for "no sequence assigned yet" (spec §4.3.2 step 7).
func (r *Router) nextSeq() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.seq == 0 {
		r.seq = 1
	}
	return r.seq
}

// mutateSelfShort picks a new non-reserved short address the way
// RadioRand() did (spec §4.3.5), for the rare case a ping round trip
// reveals this node's short address duplicated on the PAN. It only
// updates the Router's own view of SelfShort; the caller (nwk.Router's
// owner) is responsible for keeping mac.Parser's address filter and
// the radio's registered address in step with it.
func (r *Router) mutateSelfShort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := uint16(r.rng.Intn(0xFFFD) + 1)
	r.log.Warn(fmt.Sprintf("duplicate short address %#04x detected via ping, mutating to %#04x", r.cfg.SelfShort, next))
	r.cfg.SelfShort = next
}

// buildFrame assembles the on-air MAC+NWK+APP frame for an
// origination: MAC dest short address is nextHop, NWK dest/src are
// the ultimate endpoints, packet_life starts at 0 for a fresh
// origination (forwards carry it over instead; see RouteIntransit).
func (r *Router) buildFrame(nextHop, nwkDest uint16, packetLife byte, nwkType wire.NwkType, flags wire.NwkFlags, appPayload []byte) ([]byte, error) {
	nwkHdr := wire.NwkHeader{Type: nwkType, Flags: flags, Dest: nwkDest, Src: r.cfg.SelfShort, PacketLife: packetLife}
	nwkBytes := nwkHdr.Encode()
	payload := append(nwkBytes[:], appPayload...)

	frame := wire.Frame{
		Control: wire.FrameControl{Type: wire.FrameTypeData, AckRequest: true, IntraPAN: true, DestMode: wire.AddrModeShort, SrcMode: wire.AddrModeShort},
		Seq:     r.nextSeq(),
		DestPAN: r.cfg.SelfPAN,
		Dest:    wire.Addr{Mode: wire.AddrModeShort, Short: nextHop},
		SrcPAN:  r.cfg.SelfPAN,
		Src:     wire.Addr{Mode: wire.AddrModeShort, Short: r.cfg.SelfShort},
		Payload: payload,
	}
	return wire.Encode(frame)
}

// sendToNeighbor transmits frame to nextHop with up to cfg.TXRetries
// ACK attempts, per spec §4.3.2 step 5: on ACK, mark the neighbor
// slot's activity and symmetric flag and return nil; on exhaustion,
// return netcore.ErrRouteNodeError. A TX semaphore timeout (reactor
// never completes) is treated as "assume the radio is stuck" and
// counts as one attempt after a reset, per the same step.
func (r *Router) sendToNeighbor(ctx context.Context, slot int, nextHop, nwkDest uint16, packetLife byte, flags wire.NwkFlags, appPayload []byte) error {
	for attempt := 0; attempt < r.cfg.TXRetries; attempt++ {
		raw, err := r.buildFrame(nextHop, nwkDest, packetLife, wire.NwkTypeData, flags, appPayload)
		if err != nil {
			return err
		}

		if r.reac != nil {
			r.reac.SetPendingAck(true)
		}
		if err := r.radio.Transmit(ctx, raw, true); err != nil {
			r.Stats.IncrTxFailed()
			continue
		}
		r.Stats.IncrTxed()
		r.Stats.AddTxedBytes(len(raw))

		acked, timedOut := r.awaitAck(ctx)
		if acked {
			if slot >= 0 {
				r.Neighbors.InsertOrUpdate(nextHop, func(*netcore.NeighborEntry) {})
				r.Neighbors.MarkSymmetric(slot, true)
			}
			return nil
		}
		if timedOut {
			r.log.Warn(fmt.Sprintf("tx semaphore timeout sending to %#04x, resetting radio", nextHop))
			r.resetStuckRadio(ctx)
			r.Stats.IncrRadioResets()
		}
		jitter := time.Duration(r.rng.Intn(30)) * time.Millisecond
		time.Sleep(jitter)
	}
	return netcore.ErrRouteNodeError
}

// resetStuckRadio implements spec §4.3.2 step 5's recovery action for a
// TX semaphore timeout: disable RX, reset the transceiver to a known
// idle state, then re-enable RX, counting as part of the same attempt
// rather than a fresh one. Best-effort — a failure here still leaves
// the retry loop free to try its next attempt or candidate.
func (r *Router) resetStuckRadio(ctx context.Context) {
	if err := r.radio.SetAutoAck(false); err != nil {
		r.log.Warn(fmt.Sprintf("disabling autoack during radio reset: %v", err))
	}
	if err := r.radio.Reset(ctx); err != nil {
		r.log.Warn(fmt.Sprintf("resetting stuck radio: %v", err))
	}
	if err := r.radio.SetAutoAck(true); err != nil {
		r.log.Warn(fmt.Sprintf("re-enabling autoack after radio reset: %v", err))
	}
}

func (r *Router) awaitAck(ctx context.Context) (acked, timedOut bool) {
	select {
	case ev := <-r.txAcks:
		return ev.Acked, false
	case <-time.After(r.cfg.TXTimeout):
		return false, true
	case <-ctx.Done():
		return false, false
	}
}
