package mac

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/wire"
)

// MAC command ids, spec §4.2.1.
const (
	CmdAssociationRequest  byte = 0x01
	CmdAssociationResponse byte = 0x02
	CmdDisassociation      byte = 0x03
	CmdDataRequest         byte = 0x04
	CmdOrphanNotification  byte = 0x06
	CmdBeaconRequest       byte = 0x07
	CmdGTSRequest          byte = 0x09
	CmdPANIDConflict       byte = 0x0B
)

// AssociationHandler answers association requests on behalf of the
// coordinator/router role; nwk.Router implements it (depth, short
// address allocation, and neighbor table insertion all live there).
// mac.Responder only owns the wire-level reply, per spec §4.2.1.
type AssociationHandler interface {
	// Associate allocates a short address for a joining device with
	// the given EUI, or reports failure. ok mirrors the
	// AssociationResponse status byte spec §4.2.1 describes.
	Associate(eui uint64) (short uint16, ok bool)
}

// Responder replies to BeaconRequest and AssociationRequest, logs a
// PAN id conflict, accepts DataRequest without replying (see
// handleDataRequest), and silently accepts the rest
// (OrphanNotification, DisassociationNotification, GTSRequest) as
// no-ops, mirroring the original firmware's empty switch arms for
// commands this device class never acts on.
type Responder struct {
	r    radio.Radio
	log  netlog.Logger
	assoc AssociationHandler

	SelfShort uint16
	SelfPAN   uint16
	Depth     byte
	rng       *rand.Rand
}

// NewResponder builds a Responder that transmits replies over r.
func NewResponder(r radio.Radio, assoc AssociationHandler, log netlog.Logger, selfShort, selfPAN uint16) *Responder {
	return &Responder{
		r:         r,
		log:       netlog.OrNop(log),
		assoc:     assoc,
		SelfShort: selfShort,
		SelfPAN:   selfPAN,
		rng:       rand.New(rand.NewSource(int64(selfShort) + 1)),
	}
}

// Handle dispatches a decoded MAC-command Packet to the matching
// handler by command byte (the first byte of the NWK-layer payload
// for command frames, per spec §6).
func (resp *Responder) Handle(pkt *netcore.Packet) error {
	if len(pkt.MAC.Payload) == 0 {
		return netcore.ErrRouteFrame
	}
	cmd := pkt.MAC.Payload[0]
	switch cmd {
	case CmdBeaconRequest:
		return resp.handleBeaconRequest(pkt)
	case CmdAssociationRequest:
		return resp.handleAssociationRequest(pkt)
	case CmdDataRequest:
		return resp.handleDataRequest(pkt)
	case CmdOrphanNotification, CmdDisassociation, CmdGTSRequest:
		resp.log.Debug(fmt.Sprintf("ignoring MAC command 0x%02x with no handler", cmd))
		return nil
	case CmdPANIDConflict:
		resp.log.Warn(fmt.Sprintf("PAN id conflict reported by %#04x", pkt.MAC.Src.Short))
		return nil
	default:
		return nil
	}
}

// handleBeaconRequest answers with a beacon after a random jitter, per
// spec §4.2.1, so that many routers hearing the same broadcast request
// don't all reply in the same slot.
func (resp *Responder) handleBeaconRequest(pkt *netcore.Packet) error {
	jitter := time.Duration(resp.rng.Intn(20)) * time.Millisecond
	time.Sleep(jitter)

	beacon := wire.Beacon{
		PANID:          resp.SelfPAN,
		CoordShort:     resp.SelfShort,
		Depth:          resp.Depth,
		RouterCapacity: resp.assoc != nil,
	}
	payload := beacon.Encode()

	frame := wire.Frame{
		Control: wire.FrameControl{Type: wire.FrameTypeBeacon, IntraPAN: true, SrcMode: wire.AddrModeShort},
		DestPAN: resp.SelfPAN,
		SrcPAN:  resp.SelfPAN,
		Src:     wire.Addr{Mode: wire.AddrModeShort, Short: resp.SelfShort},
		Payload: payload[:],
	}
	raw, err := wire.Encode(frame)
	if err != nil {
		return err
	}
	return resp.transmit(raw)
}

func (resp *Responder) handleAssociationRequest(pkt *netcore.Packet) error {
	if resp.assoc == nil || pkt.MAC.Src.Mode != wire.AddrModeExtended {
		return nil
	}
	eui := pkt.MAC.Src.Ext
	short, ok := resp.assoc.Associate(eui)

	status := byte(0x00)
	if !ok {
		status = 0x01 // "PAN at capacity", spec §4.2.1's only failure status modeled
	}
	payload := []byte{CmdAssociationResponse, byte(short), byte(short >> 8), status}

	frame := wire.Frame{
		Control: wire.FrameControl{Type: wire.FrameTypeMACCommand, IntraPAN: true, DestMode: wire.AddrModeExtended, SrcMode: wire.AddrModeShort},
		DestPAN: resp.SelfPAN,
		Dest:    wire.Addr{Mode: wire.AddrModeExtended, Ext: eui},
		SrcPAN:  resp.SelfPAN,
		Src:     wire.Addr{Mode: wire.AddrModeShort, Short: resp.SelfShort},
		Payload: payload,
	}
	raw, err := wire.Encode(frame)
	if err != nil {
		return err
	}
	return resp.transmit(raw)
}

// handleDataRequest does not reply. handleAssociationRequest sends the
// ASSOCIATION_RESPONSE as soon as the request arrives, so no frame is
// held back for a polling child and a DataRequest sends nothing.
func (resp *Responder) handleDataRequest(pkt *netcore.Packet) error {
	return nil
}

func (resp *Responder) transmit(raw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	return resp.r.Transmit(ctx, raw, false)
}

func decodeEUI(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
