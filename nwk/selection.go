// Package nwk implements the NWK Router (spec §4.3): neighbor table
// and up-route cache maintenance, the four outbound origination APIs,
// the in-transit routing state machine, neighbor ping/hello, depth
// maintenance, and association bootstrap.
//
// Selection is deliberately written as a pure function over a
// snapshot plus a transient blacklist bitmap, per spec §9's
// "goto-based retry loop → pure function over (table, blacklist,
// depth)" design note: the original's `goto TryAnotherNode` reran the
// same scan with one more bit set in a file-scope bitmap; here the
// bitmap is a value the caller threads through instead.
package nwk

import "github.com/unet-mesh/unet/netcore"

// SelectNextHop implements spec §4.3.2 steps 2-4: scan snapshot for
// the symmetric neighbor of lowest depth (ties broken by highest
// smoothed RSSI) with depth <= selfDepth and whose slot isn't
// blacklisted; if none exists, rescan allowing asymmetric neighbors
// under the same rule. Returns the chosen slot index, or -1 if no
// candidate exists at all.
func SelectNextHop(snapshot []netcore.NeighborEntry, blacklist netcore.BlacklistBitmap, selfDepth byte) int {
	if slot := scanCandidates(snapshot, blacklist, selfDepth, true); slot != -1 {
		return slot
	}
	return scanCandidates(snapshot, blacklist, selfDepth, false)
}

func scanCandidates(snapshot []netcore.NeighborEntry, blacklist netcore.BlacklistBitmap, selfDepth byte, symmetricOnly bool) int {
	minDepth := byte(255)
	var maxRSSI int8
	selected := -1

	for i, e := range snapshot {
		if e.Empty() || blacklist.IsSet(i) {
			continue
		}
		if symmetricOnly && !e.Symmetric() {
			continue
		}
		if e.Depth > selfDepth {
			continue
		}
		switch {
		case e.Depth < minDepth:
			minDepth = e.Depth
			maxRSSI = e.RSSI
			selected = i
		case e.Depth == minDepth && selected != -1 && e.RSSI > maxRSSI:
			maxRSSI = e.RSSI
			selected = i
		}
	}
	return selected
}
