package core

import "context"

// routeLoop is the NWK Router's own task context (spec §5: "NWK Router"
// priority band): it drains mac.Parser.Data, handing each decoded Data
// packet to the routing state machine.
func (c *Core) routeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-c.Parser.Data:
			if !ok {
				return
			}
			if err := c.Router.RouteIntransit(ctx, pkt); err != nil {
				c.log.Debug("route in-transit: " + err.Error())
			}
		}
	}
}
