package wire

import "encoding/binary"

// NwkHeader is the 7-byte network-layer header carried inside the MAC
// payload: a type/parameter byte, destination and source short
// addresses, and a one-byte packet lifetime (hop budget).
type NwkHeader struct {
	Type       NwkType
	Flags      NwkFlags
	Dest       uint16
	Src        uint16
	PacketLife byte
}

// NwkType is the low nibble of the first NWK header byte.
type NwkType byte

const (
	NwkTypeData       NwkType = 0x0
	NwkTypeAssocReq   NwkType = 0x1
	NwkTypeAssocResp  NwkType = 0x2
	NwkTypeUpRouteReq NwkType = 0x3
	NwkTypeUpRouteAck NwkType = 0x4
	// NwkTypePing marks a DATA_PING neighbor-advertisement broadcast,
	// dispatched straight to the neighbor table rather than to the
	// application or the broadcast-relay path generic Data frames take.
	NwkTypePing NwkType = 0x5
)

// NwkFlags is the high nibble of the first NWK header byte: per-packet
// routing parameters rather than a fixed message type.
type NwkFlags byte

const (
	NwkFlagBroadcast NwkFlags = 1 << 0
	NwkFlagAckReq    NwkFlags = 1 << 1
	NwkFlagFromUp    NwkFlags = 1 << 2 // carried up an up-route, not down
)

const NwkHeaderLen = 7

// Encode writes h as 7 bytes.
func (h NwkHeader) Encode() [NwkHeaderLen]byte {
	var buf [NwkHeaderLen]byte
	buf[0] = byte(h.Type)&0x0F | byte(h.Flags)<<4
	binary.LittleEndian.PutUint16(buf[1:3], h.Dest)
	binary.LittleEndian.PutUint16(buf[3:5], h.Src)
	buf[5] = h.PacketLife
	// buf[6] reserved, kept zero
	return buf
}

// DecodeNwkHeader parses the first NwkHeaderLen bytes of buf.
func DecodeNwkHeader(buf []byte) (NwkHeader, []byte, error) {
	if len(buf) < NwkHeaderLen {
		return NwkHeader{}, nil, ErrFrameTooShort
	}
	h := NwkHeader{
		Type:       NwkType(buf[0] & 0x0F),
		Flags:      NwkFlags(buf[0] >> 4),
		Dest:       binary.LittleEndian.Uint16(buf[1:3]),
		Src:        binary.LittleEndian.Uint16(buf[3:5]),
		PacketLife: buf[5],
	}
	return h, buf[NwkHeaderLen:], nil
}
