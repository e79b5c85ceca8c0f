package nwk

import (
	"context"

	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/wire"
)

// DownRoute forwards appPayload toward the coordinator: select the
// symmetric neighbor of lowest depth (falling back to asymmetric, per
// SelectNextHop), send with retries, and on exhaustion blacklist that
// slot and try the next candidate (spec §4.3.2 step 6's "goto
// TryAnotherNode", reworked as a plain loop over a growing
// blacklist instead of a jump).
func (r *Router) DownRoute(ctx context.Context, appPayload []byte) error {
	if len(appPayload) > netcore.MaxAppPayload {
		return netcore.ErrPayloadOverflow
	}
	if r.Depth() >= netcore.RouteLost {
		return netcore.ErrNoRouteAvailable
	}

	snapshot := r.Neighbors.Snapshot()
	var blacklist netcore.BlacklistBitmap
	depth := r.Depth()

	for {
		slot := SelectNextHop(snapshot, blacklist, depth)
		if slot == -1 {
			return netcore.ErrRouteAttemptsError
		}
		nextHop := snapshot[slot].ShortAddr
		err := r.sendToNeighbor(ctx, slot, nextHop, netcore.CoordinatorShort, 0, 0, appPayload)
		if err == nil {
			r.Stats.IncrRouted()
			return nil
		}
		blacklist.Mark(slot)
	}
}

// ReactiveUpRoute forwards appPayload toward destination using the
// reactive up-route cache (spec §4.3.3); it never falls back to
// DownRoute or broadcast itself — that policy decision belongs to the
// caller (the routing state machine, or the application profile).
func (r *Router) ReactiveUpRoute(ctx context.Context, destination uint16, appPayload []byte) error {
	if len(appPayload) > netcore.MaxAppPayload {
		return netcore.ErrPayloadOverflow
	}
	entry, ok := r.UpRoutes.Lookup(destination)
	if !ok {
		return netcore.ErrNoRouteAvailable
	}
	slot := r.Neighbors.Find(entry.NextHop)
	err := r.sendToNeighbor(ctx, slot, entry.NextHop, destination, 0, wire.NwkFlagFromUp, appPayload)
	if err != nil {
		return err
	}
	r.Stats.IncrRouted()
	return nil
}

// OneHopRoute sends appPayload directly to destination, which must
// already be a symmetric neighbor. The slot index used for the
// post-ACK symmetric-flag write is the one Neighbors.Find just
// returned, not a loop variable reused from an earlier scan — the
// MC-variant firmware this is ported from clobbered that index with
// an unrelated `OK == 0` reassignment later in the same loop
// iteration, flipping the wrong neighbor's symmetric bit; keeping the
// index immutable here is intentional, not an oversight.
func (r *Router) OneHopRoute(ctx context.Context, destination uint16, appPayload []byte) error {
	if len(appPayload) > netcore.MaxAppPayload {
		return netcore.ErrPayloadOverflow
	}
	slot := r.Neighbors.Find(destination)
	if slot == -1 {
		return netcore.ErrNoRouteAvailable
	}
	entry := r.Neighbors.Get(slot)
	if !entry.Symmetric() {
		return netcore.ErrNoRouteAvailable
	}
	err := r.sendToNeighbor(ctx, slot, destination, destination, 0, 0, appPayload)
	if err != nil {
		return err
	}
	r.Stats.IncrRouted()
	return nil
}

// UpBroadcastRoute transmits one broadcast data frame intended for
// every neighbor at depth+1 (spec §4.3.1); broadcasts are never ACKed,
// so there is no retry loop here, matching DATA_PING's own
// fire-and-forget semantics.
func (r *Router) UpBroadcastRoute(ctx context.Context, appPayload []byte) error {
	if len(appPayload) > netcore.MaxAppPayload {
		return netcore.ErrPayloadOverflow
	}
	raw, err := r.buildFrame(wire.ShortBroadcast, wire.ShortBroadcast, 0, wire.NwkTypeData, wire.NwkFlagBroadcast, appPayload)
	if err != nil {
		return err
	}
	if err := r.radio.Transmit(ctx, raw, false); err != nil {
		r.Stats.IncrTxFailed()
		return netcore.ErrRouteNodeError
	}
	r.Stats.IncrTxed()
	r.Stats.AddTxedBytes(len(raw))
	return nil
}

// broadcastPing transmits one DATA_PING frame (spec §4.3.5), tagged
// with NwkTypePing rather than NwkTypeData so the recipient's routing
// state machine hands it to HandlePing instead of relaying it up the
// tree or delivering it to the application.
func (r *Router) broadcastPing(ctx context.Context, payload []byte) error {
	raw, err := r.buildFrame(wire.ShortBroadcast, wire.ShortBroadcast, 0, wire.NwkTypePing, wire.NwkFlagBroadcast, payload)
	if err != nil {
		return err
	}
	if err := r.radio.Transmit(ctx, raw, false); err != nil {
		r.Stats.IncrTxFailed()
		return netcore.ErrRouteNodeError
	}
	r.Stats.IncrTxed()
	r.Stats.AddTxedBytes(len(raw))
	return nil
}
