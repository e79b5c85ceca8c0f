package nwk

import (
	"context"

	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/wire"
)

// RouteIntransit implements the spec §4.3.4 state table for a
// frame mac.Parser has just handed the router on Parser.Data: update
// the up-route cache and dedup bookkeeping, then either hand the
// payload to the application (this node is the NWK destination, or
// it's a broadcast), or continue routing it up or down.
//
// start -> broadcast/call_app/neighbor_table_search -> route_up/
// route_down/send_dest_packet, exactly as the table describes; each
// state is a small unexported helper below instead of a literal
// switch over a state enum, since every transition here is a single
// decision with no re-entrant looping.
func (r *Router) RouteIntransit(ctx context.Context, pkt *netcore.Packet) error {
	if int(pkt.NWK.PacketLife)+1 > netcore.NwkMaxDepth {
		r.Stats.IncrRoutDrop()
		return netcore.ErrPacketLife
	}

	if pkt.NWK.Type == wire.NwkTypePing {
		r.HandlePing(pkt.MAC.Src.Short, pkt.RSSI, pkt.NWKPayload(), r.mutateSelfShort)
		return nil
	}

	r.recordUpRoute(pkt)

	if pkt.NWK.Flags&wire.NwkFlagBroadcast != 0 {
		return r.stateBroadcast(ctx, pkt)
	}
	if pkt.NWK.Dest == r.cfg.SelfShort {
		return r.stateCallApp(pkt)
	}
	return r.stateNeighborTableSearch(ctx, pkt)
}

// recordUpRoute implements spec §4.3.3: every in-transit frame tells
// this router how to reach its source for future up-bound traffic.
func (r *Router) recordUpRoute(pkt *netcore.Packet) {
	r.UpRoutes.Insert(pkt.NWK.Src, pkt.MAC.Src.Short, pkt.NWK.PacketLife == 0, pkt.NWK.PacketLife+1)
}

func (r *Router) stateBroadcast(ctx context.Context, pkt *netcore.Packet) error {
	if err := r.UpBroadcastRoute(ctx, pkt.NWKPayload()); err != nil {
		return err
	}
	return r.stateCallApp(pkt)
}

func (r *Router) stateCallApp(pkt *netcore.Packet) error {
	select {
	case r.AppRX <- pkt:
	default:
		r.Stats.IncrDropped()
		r.log.Warn("app rx channel full, dropping packet")
	}
	return nil
}

func (r *Router) stateNeighborTableSearch(ctx context.Context, pkt *netcore.Packet) error {
	if slot := r.Neighbors.Find(pkt.NWK.Dest); slot != -1 {
		entry := r.Neighbors.Get(slot)
		if entry.Symmetric() {
			return r.stateSendDestPacket(ctx, slot, pkt)
		}
	}
	if pkt.NWK.Flags&wire.NwkFlagFromUp != 0 {
		return r.stateRouteUp(ctx, pkt)
	}
	return r.stateRouteDown(ctx, pkt)
}

func (r *Router) stateSendDestPacket(ctx context.Context, slot int, pkt *netcore.Packet) error {
	err := r.sendToNeighbor(ctx, slot, pkt.NWK.Dest, pkt.NWK.Dest, pkt.NWK.PacketLife+1, pkt.NWK.Flags, pkt.NWKPayload())
	if err != nil {
		r.Stats.IncrRoutDrop()
	}
	return err
}

func (r *Router) stateRouteUp(ctx context.Context, pkt *netcore.Packet) error {
	return r.ReactiveUpRoute(ctx, pkt.NWK.Dest, pkt.NWKPayload())
}

func (r *Router) stateRouteDown(ctx context.Context, pkt *netcore.Packet) error {
	return r.DownRoute(ctx, pkt.NWKPayload())
}
