package netcore

import "sync"

// NeighborTable is the fixed-capacity table from spec §3: N slots
// (N=8 or 16 per build), addressed by short address, with activity
// aging and dedup bookkeeping. It is the "owned context" spec §9 asks
// for in place of a file-scope array: nwk.Router and mac.Parser each
// hold a pointer to the same table, never a private copy.
type NeighborTable struct {
	mu       sync.Mutex
	slots    []NeighborEntry
	activity ActivityBitmap
}

// NewNeighborTable returns an empty table with the given capacity (8
// or 16, per spec §3).
func NewNeighborTable(capacity int) *NeighborTable {
	t := &NeighborTable{slots: make([]NeighborEntry, capacity)}
	for i := range t.slots {
		t.slots[i].ShortAddr = ShortAddrEmpty
	}
	return t
}

func (t *NeighborTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Get returns a copy of slot i.
func (t *NeighborTable) Get(i int) NeighborEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[i]
}

// Find returns the slot index holding shortAddr, or -1.
func (t *NeighborTable) Find(shortAddr uint16) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.slots {
		if !e.Empty() && e.ShortAddr == shortAddr {
			return i
		}
	}
	return -1
}

// InsertOrUpdate finds shortAddr's slot (inserting into the first empty
// slot if absent, failing silently — same as the original firmware —
// if the table is full) and applies fn to it, returning the slot
// index or -1 if the table was full and shortAddr was not present.
// Per spec §3's invariant, the table never ends up with two entries
// sharing a short_addr.
func (t *NeighborTable) InsertOrUpdate(shortAddr uint16, fn func(e *NeighborEntry)) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	free := -1
	for i, e := range t.slots {
		if !e.Empty() && e.ShortAddr == shortAddr {
			idx = i
			break
		}
		if e.Empty() && free == -1 {
			free = i
		}
	}
	if idx == -1 {
		if free == -1 {
			return -1
		}
		idx = free
		t.slots[idx] = NeighborEntry{ShortAddr: shortAddr, Depth: NoRoute}
	}
	fn(&t.slots[idx])
	t.activity.Mark(idx)
	return idx
}

// SmoothRSSI applies the spec's exponential smoothing to slot i.
func (t *NeighborTable) SmoothRSSI(i int, observed int8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &t.slots[i]
	if e.Flags == 0 && e.RSSI == 0 {
		e.RSSI = observed
		return
	}
	e.RSSI = smoothRSSI(e.RSSI, observed)
}

// MarkSymmetric sets or clears the symmetric flag on slot i.
func (t *NeighborTable) MarkSymmetric(i int, symmetric bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if symmetric {
		t.slots[i].Flags |= FlagSymmetric
	} else {
		t.slots[i].Flags &^= FlagSymmetric
	}
}

// CheckDedup implements spec §4.2's dedup rule: if src is known and its
// last_seq equals seq, the frame is a replay (returns true, dropped).
// Otherwise records last_seq/seq_ttl=8 and returns false. Per spec §3's
// activity-bitmap rule ("set whenever a frame is received from that
// neighbor"), a non-replay hit also marks src's slot active, the same
// as InsertOrUpdate does for a ping — a neighbor that only ever
// forwards routed Data traffic must not be evicted by AgeSweep for
// missing a ping cycle.
func (t *NeighborTable) CheckDedup(src uint16, seq byte) (replay bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		e := &t.slots[i]
		if e.Empty() || e.ShortAddr != src {
			continue
		}
		if e.SeqTTL > 0 && e.LastSeq == seq {
			return true
		}
		e.LastSeq = seq
		e.SeqTTL = 8
		t.activity.Mark(i)
		return false
	}
	return false
}

// TickSeqTTL decrements every slot's seq_ttl, clearing last_seq at
// zero. Nothing in this module calls it, ticker.Ticker included, so a
// recorded last_seq stays until the next frame from that source
// replaces it.
func (t *NeighborTable) TickSeqTTL() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		e := &t.slots[i]
		if e.SeqTTL > 0 {
			e.SeqTTL--
			if e.SeqTTL == 0 {
				e.LastSeq = 0
			}
		}
	}
}

// AgeSweep implements the activity-bitmap eviction rule from spec §3:
// any non-empty slot whose activity bit is clear is evicted; the
// bitmap is then cleared wholesale for the next period. evicted lists
// the short addresses removed, so callers (depth maintenance) can
// react to a parent aging out.
func (t *NeighborTable) AgeSweep() (evicted []uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		e := &t.slots[i]
		if e.Empty() {
			continue
		}
		if !t.activity.IsSet(i) {
			evicted = append(evicted, e.ShortAddr)
			*e = NeighborEntry{ShortAddr: ShortAddrEmpty}
		}
	}
	t.activity.Clear()
	return evicted
}

// Snapshot copies every slot (including empty ones) into a slice whose
// index matches the slot index, so callers can run a pure selection
// algorithm over it without holding the table lock — the Go
// replacement for the original's "goto TryAnotherNode" retry loop
// scanning the live array directly.
func (t *NeighborTable) Snapshot() []NeighborEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NeighborEntry, len(t.slots))
	copy(out, t.slots)
	return out
}

// Each calls fn for every occupied slot, passing its index.
func (t *NeighborTable) Each(fn func(i int, e NeighborEntry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.slots {
		if !e.Empty() {
			fn(i, e)
		}
	}
}
