package nwk

import "context"

// SweepNeighborTable implements ticker.Actions: age the neighbor table
// (spec §3's activity-bitmap eviction) and run depth maintenance
// against whatever survives, including the parent-loss path when the
// evicted set contains our current parent.
func (r *Router) SweepNeighborTable() {
	evicted := r.Neighbors.AgeSweep()
	for _, short := range evicted {
		r.NeighborAgedOut(short)
	}
	if len(evicted) == 0 {
		r.UpdateDepth()
	}
}

// SweepUpRoutes implements ticker.Actions and does nothing: the
// up-route cache keeps no activity bitmap and is not aged. A cached
// route goes inactive only when its next hop is evicted from the
// neighbor table (SweepNeighborTable → NeighborAgedOut).
func (r *Router) SweepUpRoutes() {
	// netcore.UpRouteCache does not currently track a separate activity
	// bitmap the way NeighborTable does; invalidating routes through
	// neighbors that no longer exist is sufficient, since SweepNeighborTable
	// already calls UpRoutes.Invalidate for every eviction.
}

// ResetRadio implements ticker.Actions, called when the radio watchdog
// fires with no RX observed in RADIO_WATCHDOG_TIMEOUT.
func (r *Router) ResetRadio(ctx context.Context) error {
	return r.radio.Reset(ctx)
}
