package wire

import "encoding/binary"

// Beacon is the fixed 8-byte payload a router/coordinator sends in
// response to a beacon request, advertising the state an associating
// child needs to pick a parent: this node's own depth, its PAN
// coordinator's short address, its current neighbor load, and whether
// it still has room to accept children.
type Beacon struct {
	PANID         uint16
	CoordShort    uint16
	Depth         byte
	NeighborCount byte
	RouterCapacity bool
	Reserved      byte
}

const BeaconLen = 8

// Encode writes b as 8 bytes.
func (b Beacon) Encode() [BeaconLen]byte {
	var buf [BeaconLen]byte
	binary.LittleEndian.PutUint16(buf[0:2], b.PANID)
	binary.LittleEndian.PutUint16(buf[2:4], b.CoordShort)
	buf[4] = b.Depth
	buf[5] = b.NeighborCount
	if b.RouterCapacity {
		buf[6] = 1
	}
	buf[7] = b.Reserved
	return buf
}

// DecodeBeacon parses an 8-byte beacon payload.
func DecodeBeacon(buf []byte) (Beacon, error) {
	if len(buf) < BeaconLen {
		return Beacon{}, ErrFrameTooShort
	}
	return Beacon{
		PANID:          binary.LittleEndian.Uint16(buf[0:2]),
		CoordShort:     binary.LittleEndian.Uint16(buf[2:4]),
		Depth:          buf[4],
		NeighborCount:  buf[5],
		RouterCapacity: buf[6] != 0,
		Reserved:       buf[7],
	}, nil
}
