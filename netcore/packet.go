package netcore

import "github.com/unet-mesh/unet/wire"

// Packet is the tagged buffer spec §3 describes: one backing array with
// three views (MAC/NWK/APP) carved out of it by offset, the Go
// equivalent of the original's union of struct pointers over one
// buffer. RSSI/LQI are carried beside the frame as fields rather than
// appended to its bytes.
type Packet struct {
	buf [MaxOnAir]byte
	n   int

	MAC wire.Frame
	NWK wire.NwkHeader
	App wire.AppHeader

	RSSI int8
	LQI  byte

	CRCOk bool
}

// NWKPayload returns the bytes of the NWK payload (APP header + app
// payload), the region left after wire.Decode strips MAC framing and
// DecodeNwkHeader strips the 7-byte NWK header.
func (p *Packet) NWKPayload() []byte {
	return p.MAC.Payload[wire.NwkHeaderLen:]
}

// AppPayload returns the payload remaining after the 4-byte APP
// header.
func (p *Packet) AppPayload() []byte {
	return p.NWKPayload()[wire.AppHeaderLen:]
}

// ParsePacket decodes raw (a reactor-delivered frame; RSSI/LQI are
// passed separately from the reactor event) into a Packet. It does not itself decode the
// NWK/APP headers — mac.Parser does that once dispatch determines the
// frame is Data addressed to this node, since a Beacon or MAC-command
// frame never carries an NWK header.
func ParsePacket(raw []byte, rssi int8, lqi byte) (*Packet, error) {
	if len(raw) > MaxOnAir {
		return nil, ErrBufferOverflow
	}
	res, err := wire.Decode(raw)
	if err != nil {
		return nil, err
	}
	p := &Packet{MAC: res.Frame, RSSI: rssi, LQI: lqi, CRCOk: res.CRCOk}
	p.n = copy(p.buf[:], raw)
	return p, nil
}

// DecodeNWK parses the NWK header out of p.MAC.Payload into p.NWK.
func (p *Packet) DecodeNWK() error {
	h, _, err := wire.DecodeNwkHeader(p.MAC.Payload)
	if err != nil {
		return err
	}
	p.NWK = h
	return nil
}

// DecodeApp parses the APP header out of the NWK payload into p.App.
func (p *Packet) DecodeApp() error {
	h, _, err := wire.DecodeAppHeader(p.NWKPayload())
	if err != nil {
		return err
	}
	p.App = h
	return nil
}
