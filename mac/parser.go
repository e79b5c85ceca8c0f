// Package mac implements the MAC Parser and Responder (spec §4.2 and
// §4.2.1): the frame decode state machine and the per-frame-type
// dispatch rules that sit between the Radio Reactor and the NWK
// Router.
//
// The decode state machine is an explicit switch-driven function over
// wire.Decode's result, not a bit-field union — the union/bitfield
// parsing already happened one layer down, in wire.Decode. Dispatch
// and the dedup rule are grounded directly on spec §4.2; the registry
// shape for mac.Responder's per-command handlers is grounded on
// spirilis-smacbase/npi_linkmgr.go's RxRegistryProgram/RxFirehose
// handler registry (a map keyed by command id, each handler returning
// whether dispatch should continue), narrowed here to the spec's fixed
// set of MAC command handlers.
package mac

import (
	"errors"
	"fmt"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/wire"
)

var (
	// ErrForeignPAN is returned (and the frame silently dropped, per
	// spec §4.2) when a frame's destination PAN id doesn't match ours
	// and isn't the broadcast PAN id.
	ErrForeignPAN = errors.New("mac: frame addressed to a different PAN")
	// ErrForeignAddr is the address-filter analog of ErrForeignPAN.
	ErrForeignAddr = errors.New("mac: frame addressed to a different node")
	// ErrDuplicate marks a frame mac.Parser has already seen from this
	// source this tick window (spec §4.2's dedup-by-(src,seq) rule).
	ErrDuplicate = errors.New("mac: duplicate (src, seq) pair")
)

// JoinWatcher receives the two frame types an associating node needs
// during its narrow bootstrap window (spec §4.3.7) but that Dispatch
// would otherwise drop (Beacon) or that never reach a settled router's
// Responder (AssociationResponse, which only ever arrives addressed to
// a node that is still joining). Parser.Join is nil outside that
// window; nwk.AssocClient satisfies this interface by duck typing.
type JoinWatcher interface {
	Beacon(b wire.Beacon, rssi int8)
	AssociationResponse(f wire.Frame)
}

// Parser decodes inbound frames, applies PAN/address filtering and
// dedup, and routes the result either to the Responder (MAC command
// frames) or onto Data, for nwk.Router to consume.
type Parser struct {
	Neighbors *netcore.NeighborTable
	Stats     *netcore.Stats
	Responder *Responder
	log       netlog.Logger

	SelfShort uint16
	SelfPAN   uint16
	// SelfEUI is this node's 64-bit address, checked against a frame's
	// destination when it is addressed in extended mode (spec §4.2
	// rule 2's "64-bit dst matches my EUI").
	SelfEUI uint64

	// Join, when non-nil, diverts Beacon frames and AssociationResponse
	// MAC commands to it instead of the normal settled-node handling.
	// Nothing in this module sets it: core.Bootstrap feeds its
	// nwk.AssocClient from its own receive loop.
	Join JoinWatcher

	// Data receives every frame that decodes as a Data frame addressed
	// (directly or by broadcast) to this node and survives dedup.
	// nwk.Router is the sole reader.
	Data chan *netcore.Packet
}

// New builds a Parser whose Data channel buffers 8 packets.
func New(neighbors *netcore.NeighborTable, stats *netcore.Stats, responder *Responder, log netlog.Logger, selfShort, selfPAN uint16, selfEUI uint64) *Parser {
	return &Parser{
		Neighbors: neighbors,
		Stats:     stats,
		Responder: responder,
		log:       netlog.OrNop(log),
		SelfShort: selfShort,
		SelfPAN:   selfPAN,
		SelfEUI:   selfEUI,
		Data:      make(chan *netcore.Packet, 8),
	}
}

// Dispatch decodes one reactor-delivered frame and routes it per spec
// §4.2's five dispatch rules:
//  1. CRC failure → drop.
//  2. Foreign PAN or foreign destination address → drop.
//  3. Frame type Beacon → decoded and handed to Join when Join is set;
//     otherwise logged and discarded.
//  4. Frame type MACCommand → an AssociationResponse goes to Join when
//     Join is set; everything else goes to Responder dispatch by
//     command byte.
//  5. Frame type Data → dedup check, then NWK/APP header decode, then
//     published on Data for nwk.Router.
//
// Ack frames are accepted and ignored.
func (p *Parser) Dispatch(raw []byte, rssi int8, lqi byte) error {
	pkt, err := netcore.ParsePacket(raw, rssi, lqi)
	if err != nil {
		p.Stats.IncrDropped()
		return err
	}
	p.Stats.IncrRxed()
	p.Stats.AddRxedBytes(len(raw))

	if !pkt.CRCOk {
		p.Stats.IncrDropped()
		return netcore.ErrCRC
	}

	if !p.passesAddressFilter(pkt) {
		p.Stats.IncrDropped()
		if pkt.MAC.DestPAN != p.SelfPAN && pkt.MAC.DestPAN != wire.PANUnset {
			return ErrForeignPAN
		}
		return ErrForeignAddr
	}

	switch pkt.MAC.Control.Type {
	case wire.FrameTypeData:
		return p.dispatchData(pkt)
	case wire.FrameTypeMACCommand:
		if p.Join != nil && len(pkt.MAC.Payload) > 0 && pkt.MAC.Payload[0] == CmdAssociationResponse {
			p.Join.AssociationResponse(pkt.MAC)
			return nil
		}
		return p.Responder.Handle(pkt)
	case wire.FrameTypeBeacon:
		if p.Join != nil {
			beacon, err := wire.DecodeBeacon(pkt.MAC.Payload)
			if err != nil {
				p.Stats.IncrDropped()
				return err
			}
			p.Join.Beacon(beacon, pkt.RSSI)
			return nil
		}
		p.log.Debug(fmt.Sprintf("dropping unsolicited beacon frame from %#04x", pkt.MAC.Src.Short))
		return nil
	case wire.FrameTypeAck:
		return nil
	default:
		p.Stats.IncrDropped()
		return netcore.ErrRouteFrame
	}
}

func (p *Parser) passesAddressFilter(pkt *netcore.Packet) bool {
	f := pkt.MAC
	if f.Dest.Mode != wire.AddrModeNone && f.DestPAN != wire.PANUnset && f.DestPAN != p.SelfPAN && f.DestPAN != 0xFFFF {
		return false
	}
	switch f.Dest.Mode {
	case wire.AddrModeNone:
		return true
	case wire.AddrModeShort:
		return f.Dest.Short == p.SelfShort || f.Dest.Short == wire.ShortBroadcast
	case wire.AddrModeExtended:
		return f.Dest.Ext == p.SelfEUI
	default:
		return false
	}
}

func (p *Parser) dispatchData(pkt *netcore.Packet) error {
	src := pkt.MAC.Src.Short
	if p.Neighbors.CheckDedup(src, pkt.MAC.Seq) {
		p.Stats.IncrDropped()
		return ErrDuplicate
	}
	if err := pkt.DecodeNWK(); err != nil {
		p.Stats.IncrDropped()
		return err
	}
	if pkt.NWK.PacketLife >= netcore.NwkMaxDepth {
		p.Stats.IncrRoutDrop()
		return netcore.ErrPacketLife
	}
	select {
	case p.Data <- pkt:
	default:
		p.Stats.IncrDropped()
		p.log.Warn("mac parser data channel full, dropping frame")
	}
	return nil
}
