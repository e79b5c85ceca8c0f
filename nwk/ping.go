package nwk

import (
	"context"
	"encoding/binary"

	"github.com/unet-mesh/unet/netcore"
)

// pingEntrySize is the wire size of one (short_addr, rssi) tuple
// carried in a DATA_PING payload.
const pingEntrySize = 3

// SendPing broadcasts this node's DATA_PING (spec §4.3.5): its own
// depth, followed by a (short_addr, rssi) tuple per occupied neighbor
// slot, budget-limited to whatever the neighbor table's own capacity
// already guarantees fits (8 or 16 entries, well under
// netcore.MaxAppPayload).
func (r *Router) SendPing(ctx context.Context) error {
	payload := make([]byte, 0, 1+r.Neighbors.Len()*pingEntrySize)
	payload = append(payload, r.Depth())

	r.Neighbors.Each(func(_ int, e netcore.NeighborEntry) {
		var tmp [pingEntrySize]byte
		binary.LittleEndian.PutUint16(tmp[0:2], e.ShortAddr)
		tmp[2] = byte(e.RSSI)
		payload = append(payload, tmp[:]...)
	})

	r.Stats.IncrHellos()
	return r.broadcastPing(ctx, payload)
}

// HandlePing applies an inbound DATA_PING to the neighbor table, per
// spec §4.3.5: insert-or-update the sender with smoothed RSSI and its
// advertised depth, then scan the sender's own neighbor list for a
// tuple naming us. If both directional RSSIs clear RSSI_THRESHOLD,
// mark the link symmetric. Seeing our own short address listed more
// than once is evidence of a duplicate MAC on the PAN; mutateSelf is
// called in that case so the caller (association/depth layer) can
// pick a new short address the way RadioRand() did.
func (r *Router) HandlePing(src uint16, srcRSSI int8, payload []byte, mutateSelf func()) {
	if len(payload) < 1 {
		return
	}
	senderDepth := payload[0]
	entries := payload[1:]

	slot := r.Neighbors.InsertOrUpdate(src, func(e *netcore.NeighborEntry) {
		e.Depth = senderDepth
	})
	if slot == -1 {
		return
	}
	r.Neighbors.SmoothRSSI(slot, srcRSSI)

	selfSeen := 0
	for off := 0; off+pingEntrySize <= len(entries); off += pingEntrySize {
		short := binary.LittleEndian.Uint16(entries[off : off+2])
		rssi := int8(entries[off+2])
		if short != r.cfg.SelfShort {
			continue
		}
		selfSeen++
		entry := r.Neighbors.Get(slot)
		if entry.RSSI > netcore.RSSIThreshold && rssi > netcore.RSSIThreshold {
			r.Neighbors.MarkSymmetric(slot, true)
		}
	}
	if selfSeen > 1 && mutateSelf != nil {
		mutateSelf()
	}

	r.UpdateDepth()
}
