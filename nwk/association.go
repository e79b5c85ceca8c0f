package nwk

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/storage"
	"github.com/unet-mesh/unet/wire"
)

// ErrAssociationFailed covers every exhausted-retries path through the
// bootstrap state machine in spec §4.3.7.
var ErrAssociationFailed = errors.New("nwk: association bootstrap failed")

// Associate implements mac.AssociationHandler on behalf of a router or
// coordinator that already has a short address: allocate the next free
// one for a joining device, bounded by neighbor table capacity (a
// proxy for "PAN at capacity", since every associated child eventually
// needs its own neighbor table slot once it starts pinging).
func (r *Router) Associate(eui uint64) (uint16, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextChildShort == 0 {
		r.nextChildShort = r.cfg.SelfShort + 1
	}
	if int(r.nextChildShort-r.cfg.SelfShort-1) >= r.Neighbors.Len() {
		return 0, false
	}
	short := r.nextChildShort
	r.nextChildShort++
	return short, true
}

// BeaconCandidate is one beacon collected during the collection window
// in spec §4.3.7 step 1.
type BeaconCandidate struct {
	Beacon wire.Beacon
	RSSI   int8
}

// SelectBestBeacon implements step 2: among candidates whose
// RouterCapacity is true (the AssociationStatus == 0 condition, renamed
// for the Go rendition per SPEC_FULL's symmetry with every other
// boolean-capacity field), pick the one with highest RSSI.
func SelectBestBeacon(candidates []BeaconCandidate) (BeaconCandidate, bool) {
	var best BeaconCandidate
	found := false
	for _, c := range candidates {
		if !c.Beacon.RouterCapacity {
			continue
		}
		if !found || c.RSSI > best.RSSI {
			best = c
			found = true
		}
	}
	return best, found
}

// DeriveShortAddr implements step 4: prefer the responder-provided
// short address; if it is the sentinel "let the joiner pick one"
// value, derive it stochastically from the last received frame's CRC
// and the low bits of the local timer, the same entropy sources
// RadioRand() drew from.
func DeriveShortAddr(responderShort uint16, lastRxedCRC uint16, timerLow uint16) uint16 {
	if responderShort != netcore.ShortAddrEmpty {
		return responderShort
	}
	addr := lastRxedCRC ^ timerLow
	if addr == netcore.ShortAddrEmpty || addr == 0 {
		addr = 1
	}
	return addr
}

// AssocClient drives the joining side of spec §4.3.7's bootstrap: it
// is only ever run by a router that starts with no persisted short
// address. Beacons and the association response reach it through the
// Beacon and AssociationResponse methods, which core.Bootstrap's
// bootstrapRecvLoop calls, and are queued on the two channels below.
type AssocClient struct {
	radio   radio.Radio
	store   storage.Store
	log     func(string)
	selfEUI uint64
	rng     *rand.Rand

	Beacons   chan BeaconCandidate
	Responses chan wire.Frame
}

// NewAssocClient builds a client for the given EUI.
func NewAssocClient(r radio.Radio, store storage.Store, eui uint64) *AssocClient {
	return &AssocClient{
		radio:     r,
		store:     store,
		selfEUI:   eui,
		rng:       rand.New(rand.NewSource(int64(eui))),
		Beacons:   make(chan BeaconCandidate, 16),
		Responses: make(chan wire.Frame, 4),
	}
}

// Beacon and AssociationResponse implement mac.JoinWatcher; during the
// bootstrap window core.Bootstrap's receive loop calls them with the
// two frame types this client needs.
func (c *AssocClient) Beacon(b wire.Beacon, rssi int8) {
	select {
	case c.Beacons <- BeaconCandidate{Beacon: b, RSSI: rssi}:
	default:
	}
}

// AssociationResponse accepts f only when it is addressed to this
// node's own EUI (spec §4.2 rule 2) — bootstrapRecvLoop hands every
// CmdAssociationResponse frame it overhears to this method without
// filtering, so any other joining node's response on the same PAN
// would otherwise be accepted here too.
func (c *AssocClient) AssociationResponse(f wire.Frame) {
	if f.Dest.Mode != wire.AddrModeExtended || f.Dest.Ext != c.selfEUI {
		return
	}
	select {
	case c.Responses <- f:
	default:
	}
}

// Run executes up to maxRounds collection rounds, each broadcasting up
// to 4 BEACON_REQUESTs (spec §4.3.7 step 1), then working through
// candidates best-RSSI-first (steps 2-5) until one yields a persisted
// Identity or every candidate is exhausted.
func (c *AssocClient) Run(ctx context.Context, maxRounds int) (storage.Identity, error) {
	var candidates []BeaconCandidate
	for round := 0; round < maxRounds && len(candidates) == 0; round++ {
		if err := c.broadcastRound(ctx); err != nil {
			return storage.Identity{}, err
		}
		candidates = c.drainBeacons()
	}
	if len(candidates) == 0 {
		return storage.Identity{}, ErrAssociationFailed
	}

	for len(candidates) > 0 {
		best, ok := SelectBestBeacon(candidates)
		if !ok {
			return storage.Identity{}, ErrAssociationFailed
		}
		id, err := c.tryAssociate(ctx, best)
		if err == nil {
			return id, nil
		}
		candidates = removeCandidate(candidates, best)
	}
	return storage.Identity{}, ErrAssociationFailed
}

func (c *AssocClient) broadcastRound(ctx context.Context) error {
	for i := 0; i < 4; i++ {
		frame := wire.Frame{
			Control: wire.FrameControl{Type: wire.FrameTypeMACCommand, SrcMode: wire.AddrModeExtended},
			DestPAN: wire.PANUnset,
			Dest:    wire.Addr{Mode: wire.AddrModeNone},
			Src:     wire.Addr{Mode: wire.AddrModeExtended, Ext: c.selfEUI},
			Payload: []byte{0x07}, // CmdBeaconRequest
		}
		raw, err := wire.Encode(frame)
		if err != nil {
			return err
		}
		if err := c.radio.Transmit(ctx, raw, false); err != nil {
			return err
		}
		jitter := time.Duration(c.rng.Intn(20)) * time.Millisecond
		time.Sleep(53*time.Millisecond + jitter)
	}
	return nil
}

func (c *AssocClient) drainBeacons() []BeaconCandidate {
	var out []BeaconCandidate
	for {
		select {
		case b := <-c.Beacons:
			out = append(out, b)
		default:
			return out
		}
	}
}

func removeCandidate(cands []BeaconCandidate, remove BeaconCandidate) []BeaconCandidate {
	out := cands[:0]
	skipped := false
	for _, c := range cands {
		if !skipped && c == remove {
			skipped = true
			continue
		}
		out = append(out, c)
	}
	return out
}

// tryAssociate runs steps 3-4 against one candidate beacon, up to
// three attempts (step 5) before giving up on it.
func (c *AssocClient) tryAssociate(ctx context.Context, cand BeaconCandidate) (storage.Identity, error) {
	for attempt := 0; attempt < 3; attempt++ {
		req := wire.Frame{
			Control: wire.FrameControl{Type: wire.FrameTypeMACCommand, AckRequest: true, IntraPAN: true, DestMode: wire.AddrModeShort, SrcMode: wire.AddrModeExtended},
			DestPAN: cand.Beacon.PANID,
			Dest:    wire.Addr{Mode: wire.AddrModeShort, Short: cand.Beacon.CoordShort},
			SrcPAN:  cand.Beacon.PANID,
			Src:     wire.Addr{Mode: wire.AddrModeExtended, Ext: c.selfEUI},
			Payload: []byte{0x01}, // CmdAssociationRequest
		}
		raw, err := wire.Encode(req)
		if err != nil {
			return storage.Identity{}, err
		}
		if err := c.radio.Transmit(ctx, raw, true); err != nil {
			continue
		}

		select {
		case resp := <-c.Responses:
			return c.acceptResponse(cand, resp)
		case <-time.After(492 * time.Millisecond):
			continue
		case <-ctx.Done():
			return storage.Identity{}, ctx.Err()
		}
	}
	return storage.Identity{}, ErrAssociationFailed
}

func (c *AssocClient) acceptResponse(cand BeaconCandidate, resp wire.Frame) (storage.Identity, error) {
	if resp.Dest.Mode != wire.AddrModeExtended || resp.Dest.Ext != c.selfEUI {
		return storage.Identity{}, ErrAssociationFailed
	}
	if len(resp.Payload) < 4 {
		return storage.Identity{}, ErrAssociationFailed
	}
	responderShort := uint16(resp.Payload[1]) | uint16(resp.Payload[2])<<8
	status := resp.Payload[3]
	if status != 0 {
		return storage.Identity{}, ErrAssociationFailed
	}

	short := DeriveShortAddr(responderShort, 0, uint16(time.Now().UnixNano()&0xFFFF))
	id := storage.Identity{ShortAddr: short, PANID: cand.Beacon.PANID, EUI: c.selfEUI}
	if c.store != nil {
		if err := c.store.Store(id); err != nil {
			return storage.Identity{}, err
		}
	}
	return id, nil
}
