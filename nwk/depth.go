package nwk

import "github.com/unet-mesh/unet/netcore"

// UpdateDepth implements spec §4.3.6: after any neighbor-table change,
// re-evaluate whether a better (or, if we have none, any) parent
// candidate exists among our symmetric neighbors.
func (r *Router) UpdateDepth() {
	snapshot := r.Neighbors.Snapshot()

	r.mu.Lock()
	selfDepth := r.depth
	parent := r.parent
	r.mu.Unlock()

	minCandidateDepth := byte(netcore.RouteLost)
	found := false
	for _, e := range snapshot {
		if e.Empty() || !e.Symmetric() {
			continue
		}
		if selfDepth != netcore.RouteLost && e.Depth >= selfDepth {
			continue
		}
		if !found || e.Depth < minCandidateDepth {
			minCandidateDepth = e.Depth
			found = true
		}
	}
	if !found {
		return
	}

	var best uint16 = netcore.ShortAddrEmpty
	var bestRSSI int8
	var parentRSSI int8
	parentAtLevel := false
	for _, e := range snapshot {
		if e.Empty() || !e.Symmetric() || e.Depth != minCandidateDepth {
			continue
		}
		if e.ShortAddr == parent {
			parentAtLevel = true
			parentRSSI = e.RSSI
		}
		if best == netcore.ShortAddrEmpty || e.RSSI > bestRSSI {
			best = e.ShortAddr
			bestRSSI = e.RSSI
		}
	}

	newDepth := minCandidateDepth + 1

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case selfDepth == netcore.RouteLost || newDepth < selfDepth:
		r.depth = newDepth
		r.parent = best
		r.watchdog = 0
	case newDepth == selfDepth:
		if parentAtLevel {
			if bestRSSI > parentRSSI && best != parent {
				r.parent = best
			}
			return
		}
		r.parent = best
	}
}

// NeighborAgedOut implements the parent-loss branch of spec §4.3.6:
// when the timer sweep evicts our current parent, drop to
// netcore.RouteLost and rerun depth selection over what remains.
func (r *Router) NeighborAgedOut(shortAddr uint16) {
	r.mu.Lock()
	isParent := shortAddr == r.parent
	if isParent {
		r.depth = netcore.RouteLost
		r.parent = netcore.ShortAddrEmpty
		r.watchdog = 0
	}
	r.mu.Unlock()

	r.UpRoutes.Invalidate(shortAddr)
	if isParent {
		r.UpdateDepth()
	}
}
