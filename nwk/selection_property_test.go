package nwk

import (
	"testing"

	"github.com/unet-mesh/unet/netcore"
	"pgregory.net/rapid"
)

func genNeighbor(t *rapid.T, slot int) netcore.NeighborEntry {
	empty := rapid.Bool().Draw(t, "empty")
	if empty {
		return netcore.NeighborEntry{ShortAddr: netcore.ShortAddrEmpty}
	}
	symmetric := rapid.Bool().Draw(t, "symmetric")
	var flags netcore.NeighborFlags
	if symmetric {
		flags = netcore.FlagSymmetric
	}
	return netcore.NeighborEntry{
		ShortAddr: uint16(slot + 1),
		Depth:     byte(rapid.IntRange(0, 200).Draw(t, "depth")),
		RSSI:      int8(rapid.IntRange(-100, 0).Draw(t, "rssi")),
		Flags:     flags,
	}
}

// TestSelectNextHopPicksLowestDepthWithinBudget checks the invariant
// spec §4.3.2 describes: whatever slot is returned is not blacklisted,
// has depth <= selfDepth, and no unblacklisted symmetric neighbor of
// strictly lower depth was skipped over.
func TestSelectNextHopPicksLowestDepthWithinBudget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		snapshot := make([]netcore.NeighborEntry, n)
		for i := range snapshot {
			snapshot[i] = genNeighbor(rt, i)
		}
		selfDepth := byte(rapid.IntRange(0, 200).Draw(rt, "selfDepth"))
		var blacklist netcore.BlacklistBitmap
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(rt, "blacklisted") {
				blacklist.Mark(i)
			}
		}

		slot := SelectNextHop(snapshot, blacklist, selfDepth)
		if slot == -1 {
			for i, e := range snapshot {
				if !e.Empty() && !blacklist.IsSet(i) && e.Depth <= selfDepth {
					rt.Fatalf("SelectNextHop returned no candidate, but slot %d qualifies: %+v", i, e)
				}
			}
			return
		}

		chosen := snapshot[slot]
		if chosen.Empty() {
			rt.Fatalf("SelectNextHop chose empty slot %d", slot)
		}
		if blacklist.IsSet(slot) {
			rt.Fatalf("SelectNextHop chose blacklisted slot %d", slot)
		}
		if chosen.Depth > selfDepth {
			rt.Fatalf("SelectNextHop chose slot %d with depth %d > selfDepth %d", slot, chosen.Depth, selfDepth)
		}
		for i, e := range snapshot {
			if e.Empty() || blacklist.IsSet(i) || e.Depth > selfDepth {
				continue
			}
			if e.Symmetric() && !chosen.Symmetric() {
				rt.Fatalf("SelectNextHop chose asymmetric slot %d while symmetric slot %d qualified", slot, i)
			}
			if e.Symmetric() == chosen.Symmetric() && e.Depth < chosen.Depth {
				rt.Fatalf("SelectNextHop chose slot %d at depth %d while slot %d at lower depth %d qualified", slot, chosen.Depth, i, e.Depth)
			}
		}
	})
}
