package core

import (
	"context"

	"github.com/unet-mesh/unet/netcore"
)

// DownRoute forwards payload toward the coordinator (spec §4.3.1).
func (c *Core) DownRoute(ctx context.Context, payload []byte) error {
	return c.Router.DownRoute(ctx, payload)
}

// ReactiveUpRoute forwards payload toward destination using the
// reactive up-route cache.
func (c *Core) ReactiveUpRoute(ctx context.Context, destination uint16, payload []byte) error {
	return c.Router.ReactiveUpRoute(ctx, destination, payload)
}

// OneHopRoute sends payload directly to a symmetric neighbor.
func (c *Core) OneHopRoute(ctx context.Context, destination uint16, payload []byte) error {
	return c.Router.OneHopRoute(ctx, destination, payload)
}

// UpBroadcastRoute forwards payload to every neighbor at depth+1.
func (c *Core) UpBroadcastRoute(ctx context.Context, payload []byte) error {
	return c.Router.UpBroadcastRoute(ctx, payload)
}

// AppRX is the channel every packet destined for this node's
// application layer arrives on (spec §4.3.4's call_app_layer state).
func (c *Core) AppRX() <-chan *netcore.Packet {
	return c.Router.AppRX
}

// Stats returns a point-in-time snapshot of the 14-field statistics
// block (spec §7).
func (c *Core) Stats() netcore.StatsSnapshot {
	return c.Router.Stats.Snapshot()
}

// Depth reports this node's current depth (netcore.RouteLost if none).
func (c *Core) Depth() byte { return c.Router.Depth() }

// DepthWatchdog reports the monotonic depth-watchdog counter (spec
// §4.4's GetDepthWatchdog()) — a supplemented accessor the original
// exposed only to its own NWK task, useful here for host-side
// diagnostics.
func (c *Core) DepthWatchdog() int { return c.Router.DepthWatchdog() }
