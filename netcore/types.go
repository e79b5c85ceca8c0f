// Package netcore holds the shared tables, counters, and wire-adjacent
// types spec §3 describes as one owned NetworkCore-style aggregate in
// place of a dozen file-scope volatile globals: the neighbor table, the
// up-route cache, the statistics block, and the tagged-buffer Packet
// type. mac.Parser and nwk.Router both hold pointers into these same
// tables rather than private copies, exactly as a single owning struct
// would hand out bounded capabilities to its fields.
//
// The owning aggregate itself — the Core type that wires
// reactor.Reactor, mac.Parser, nwk.Router, and ticker.Ticker together —
// lives one level up, in package core, so that mac and nwk can import
// netcore for these shared types without a package import cycle
// (core imports mac and nwk; netcore imports neither).
package netcore

import "sync"

const (
	// RouteLost marks a node that had a route and lost it; it is
	// holding an election for a new parent.
	RouteLost byte = 0xFE
	// NoRoute marks a node that has never had a route.
	NoRoute byte = 0xFF

	ShortAddrEmpty = uint16(0xFFFE)
	PANUnassigned  = uint16(0xFFFF)

	// CoordinatorShort is the PAN coordinator's fixed short address;
	// DownRoute always addresses the NWK header to it, regardless of
	// which intermediate router the frame next hops through.
	CoordinatorShort = uint16(0x0000)

	// NwkMaxDepth is the packet_life ceiling past which a frame is
	// always dropped, regardless of remaining hop budget.
	NwkMaxDepth = 200

	// MaxOnAir and MaxAppPayload mirror wire.MaxOnAir/MaxAppPayload.
	MaxOnAir      = 127
	MaxAppPayload = 88

	// RSSIThreshold is the minimum smoothed RSSI, in both directions,
	// for a link to be marked symmetric.
	RSSIThreshold = int8(-70)
)

// NeighborFlags is the bitset on a NeighborEntry.
type NeighborFlags byte

const (
	FlagSymmetric NeighborFlags = 1 << iota
	FlagRxAllowed
	FlagTxPending
	FlagActive
)

// NeighborEntry is one fixed-capacity neighbor table slot (spec §3).
type NeighborEntry struct {
	ShortAddr uint16
	RSSI      int8
	LQI       byte
	LastSeq   byte
	SeqTTL    byte
	Depth     byte
	Flags     NeighborFlags
}

// Empty reports whether this slot holds no neighbor.
func (n NeighborEntry) Empty() bool { return n.ShortAddr == ShortAddrEmpty }

func (n NeighborEntry) Symmetric() bool { return n.Flags&FlagSymmetric != 0 }
func (n NeighborEntry) Active() bool    { return n.Flags&FlagActive != 0 }

// smoothRSSI applies the spec's exponential smoothing: (old*7+new)/8.
func smoothRSSI(old, new int8) int8 {
	return int8((int(old)*7 + int(new)) / 8)
}

// UpRouteEntry is one reactive up-route cache slot (spec §3/§4.3.3).
type UpRouteEntry struct {
	Destination uint16
	NextHop     uint16
	IsOneHop    bool
	HopCount    byte
	Active      bool
}

func (e UpRouteEntry) Empty() bool { return e.Destination == ShortAddrEmpty }

// ActivityBitmap tracks, one bit per neighbor-table slot, whether a
// frame has been seen from that slot since the last aging sweep.
type ActivityBitmap uint32

func (b *ActivityBitmap) Mark(slot int)      { *b |= 1 << uint(slot) }
func (b ActivityBitmap) IsSet(slot int) bool { return b&(1<<uint(slot)) != 0 }
func (b *ActivityBitmap) Clear()             { *b = 0 }

// BlacklistBitmap marks neighbor slots that failed the current
// transmit attempt; it is rebuilt from scratch on every origination,
// per spec §4.3.2's "transient per-transmit bitmap".
type BlacklistBitmap uint32

func (b *BlacklistBitmap) Mark(slot int)      { *b |= 1 << uint(slot) }
func (b BlacklistBitmap) IsSet(slot int) bool { return b&(1<<uint(slot)) != 0 }

// Stats is the 14-field statistics struct from spec §7, implemented
// with 16-bit wrapping counters guarded by one mutex, so readers never
// observe the "auto-clear on 0xFFFF wrap" rule applied inconsistently.
type Stats struct {
	mu sync.Mutex

	rxed, txed, txfailed     uint16
	routed, apptxed          uint16
	dropped, overbuf         uint16
	routdrop                 uint16
	rxedbytes, txedbytes     uint16
	rxbps, txbps             uint16
	radioresets, hellos      uint16
}

// StatsSnapshot is the read-only view Stats() returns.
type StatsSnapshot struct {
	Rxed, Txed, TxFailed     uint16
	Routed, AppTxed          uint16
	Dropped, Overbuf         uint16
	RoutDrop                 uint16
	RxedBytes, TxedBytes     uint16
	Rxbps, Txbps             uint16
	RadioResets, Hellos      uint16
}

func bump(counter *uint16) {
	if *counter == 0xFFFF {
		*counter = 0
	}
	*counter++
}

func (s *Stats) incr(field *uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bump(field)
}

func (s *Stats) IncrRxed()       { s.incr(&s.rxed) }
func (s *Stats) IncrTxed()       { s.incr(&s.txed) }
func (s *Stats) IncrTxFailed()   { s.incr(&s.txfailed) }
func (s *Stats) IncrRouted()     { s.incr(&s.routed) }
func (s *Stats) IncrAppTxed()    { s.incr(&s.apptxed) }
func (s *Stats) IncrDropped()    { s.incr(&s.dropped) }
func (s *Stats) IncrOverbuf()    { s.incr(&s.overbuf) }
func (s *Stats) IncrRoutDrop()   { s.incr(&s.routdrop) }
func (s *Stats) IncrRadioResets() { s.incr(&s.radioresets) }
func (s *Stats) IncrHellos()     { s.incr(&s.hellos) }

func (s *Stats) AddRxedBytes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxedbytes += uint16(n)
}

func (s *Stats) AddTxedBytes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txedbytes += uint16(n)
}

// RolloverSecond applies the spec §4.4 StatTimer averaging rule and
// clears the byte counters, called once every 1000 ticks.
func (s *Stats) RolloverSecond() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxbps = uint16((int(s.rxbps)*7 + int(s.rxedbytes)*8) / 8)
	s.txbps = uint16((int(s.txbps)*7 + int(s.txedbytes)*8) / 8)
	s.rxedbytes = 0
	s.txedbytes = 0
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Rxed: s.rxed, Txed: s.txed, TxFailed: s.txfailed,
		Routed: s.routed, AppTxed: s.apptxed,
		Dropped: s.dropped, Overbuf: s.overbuf, RoutDrop: s.routdrop,
		RxedBytes: s.rxedbytes, TxedBytes: s.txedbytes,
		Rxbps: s.rxbps, Txbps: s.txbps,
		RadioResets: s.radioresets, Hellos: s.hellos,
	}
}
