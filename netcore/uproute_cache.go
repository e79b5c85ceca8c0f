package netcore

import "sync"

// UpRouteCache is the fixed-capacity reactive up-route cache from spec
// §3/§4.3.3: a small round-robin table of (destination, next_hop)
// pairs, learned from the source of every frame nwk.Router handles in
// transit and consulted by nwk.Router.ReactiveUpRoute, which does not
// fall back to the parent route when no entry matches.
type UpRouteCache struct {
	mu    sync.Mutex
	slots []UpRouteEntry
	next  int // next slot to evict under round-robin replacement
}

// NewUpRouteCache returns an empty cache with the given capacity.
func NewUpRouteCache(capacity int) *UpRouteCache {
	c := &UpRouteCache{slots: make([]UpRouteEntry, capacity)}
	for i := range c.slots {
		c.slots[i].Destination = ShortAddrEmpty
	}
	return c
}

// Lookup returns the cached route to dest, if any.
func (c *UpRouteCache) Lookup(dest uint16) (UpRouteEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.slots {
		if !e.Empty() && e.Destination == dest && e.Active {
			return e, true
		}
	}
	return UpRouteEntry{}, false
}

// Insert records (or refreshes) a route to dest via nextHop, evicting
// round-robin when full — the original's replacement policy had no
// LRU bookkeeping beyond "next slot", so neither does this one.
func (c *UpRouteCache) Insert(dest, nextHop uint16, oneHop bool, hopCount byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if !c.slots[i].Empty() && c.slots[i].Destination == dest {
			c.slots[i] = UpRouteEntry{Destination: dest, NextHop: nextHop, IsOneHop: oneHop, HopCount: hopCount, Active: true}
			return
		}
	}
	for i := range c.slots {
		if c.slots[i].Empty() {
			c.slots[i] = UpRouteEntry{Destination: dest, NextHop: nextHop, IsOneHop: oneHop, HopCount: hopCount, Active: true}
			return
		}
	}
	i := c.next
	c.next = (c.next + 1) % len(c.slots)
	c.slots[i] = UpRouteEntry{Destination: dest, NextHop: nextHop, IsOneHop: oneHop, HopCount: hopCount, Active: true}
}

// Invalidate marks every route via nextHop inactive, called when a
// neighbor is evicted from the neighbor table (spec §4.3.6's
// parent-loss path).
func (c *UpRouteCache) Invalidate(nextHop uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if !c.slots[i].Empty() && c.slots[i].NextHop == nextHop {
			c.slots[i].Active = false
		}
	}
}

// Each calls fn for every occupied slot.
func (c *UpRouteCache) Each(fn func(e UpRouteEntry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.slots {
		if !e.Empty() {
			fn(e)
		}
	}
}
