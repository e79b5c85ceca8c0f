// Package wire implements the on-air byte layouts from spec §6: the
// 802.15.4-style MAC frame (control word, variable addressing, CRC), the
// 7-byte NWK header, the 4-byte APP header, and the fixed beacon payload.
//
// Every field is produced and consumed with explicit shifts and masks
// (no bit-field unions, per the original firmware's platform-specific
// struct layout and the design note in spec §9 asking for a
// platform-independent replacement) — the house style is the same one
// spirilis-smacbase/npi_protocol.go uses for its OTA frame: a fixed
// start marker, explicit little/big-endian field packing, and a trailing
// checksum, just generalized here from an XOR checksum over one address
// format to CRC-CCITT over 802.15.4 addressing modes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FrameType is the 3-bit Frame Type subfield of Frame Control.
type FrameType byte

const (
	FrameTypeBeacon     FrameType = 0b000
	FrameTypeData       FrameType = 0b001
	FrameTypeAck        FrameType = 0b010
	FrameTypeMACCommand FrameType = 0b011
)

// AddrMode is the 2-bit addressing mode subfield (destination or
// source). Mode 0b01 is reserved by 802.15.4 and always a drop.
type AddrMode byte

const (
	AddrModeNone      AddrMode = 0b00
	AddrModeReserved  AddrMode = 0b01
	AddrModeShort     AddrMode = 0b10
	AddrModeExtended  AddrMode = 0b11
)

const (
	ShortBroadcast = uint16(0xFFFF)
	ShortUnset     = uint16(0xFFFE)
	PANUnset       = uint16(0xFFFF)

	// MaxOnAir is the largest frame spec §6 allows to exist on the air.
	MaxOnAir = 127
	// MaxAppPayload is the largest payload left for the APP layer once
	// MAC and NWK overhead is subtracted.
	MaxAppPayload = 88
)

var (
	ErrFrameTooShort    = errors.New("wire: frame shorter than minimum header")
	ErrReservedAddrMode = errors.New("wire: reserved addressing mode 0b01")
	ErrFrameTooLong     = errors.New("wire: frame exceeds maximum on-air size")
)

// FrameControl is the decoded 2-byte Frame Control field.
type FrameControl struct {
	Type        FrameType
	AckRequest  bool
	IntraPAN    bool
	DestMode    AddrMode
	SrcMode     AddrMode
}

func (fc FrameControl) encode() uint16 {
	var v uint16
	v |= uint16(fc.Type) & 0x07
	if fc.AckRequest {
		v |= 1 << 5
	}
	if fc.IntraPAN {
		v |= 1 << 6
	}
	v |= uint16(fc.DestMode) << 10
	v |= uint16(fc.SrcMode) << 14
	return v
}

func decodeFrameControl(v uint16) FrameControl {
	return FrameControl{
		Type:       FrameType(v & 0x07),
		AckRequest: v&(1<<5) != 0,
		IntraPAN:   v&(1<<6) != 0,
		DestMode:   AddrMode((v >> 10) & 0x03),
		SrcMode:    AddrMode((v >> 14) & 0x03),
	}
}

// Addr is either a 16-bit short address or a 64-bit extended (EUI)
// address, tagged by the mode it was decoded under.
type Addr struct {
	Mode  AddrMode
	Short uint16
	Ext   uint64
}

// Frame is a fully decoded MAC frame header plus its raw payload bytes
// (the NWK+APP region, still unparsed at this layer).
type Frame struct {
	Control   FrameControl
	Seq       byte
	DestPAN   uint16
	Dest      Addr
	SrcPAN    uint16
	Src       Addr
	Payload   []byte
}

func addrLen(mode AddrMode) int {
	switch mode {
	case AddrModeNone:
		return 0
	case AddrModeShort:
		return 2
	case AddrModeExtended:
		return 8
	default:
		return -1
	}
}

// Encode serializes f into an on-air MAC frame including the trailing
// CRC-CCITT, but without the length prefix byte the radio layer adds.
func Encode(f Frame) ([]byte, error) {
	destLen := addrLen(f.Control.DestMode)
	srcLen := addrLen(f.Control.SrcMode)
	if destLen < 0 || srcLen < 0 {
		return nil, ErrReservedAddrMode
	}

	size := 2 + 1 + destLen + srcLen + len(f.Payload) + 2
	if destLen > 0 {
		size += 2 // dest PAN
	}
	if srcLen > 0 && !f.Control.IntraPAN {
		size += 2 // src PAN, omitted under intra-PAN addressing
	}
	if size > MaxOnAir {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, size)
	}

	buf := make([]byte, 0, size)
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], f.Control.encode())
	buf = append(buf, tmp[:]...)
	buf = append(buf, f.Seq)

	if destLen > 0 {
		binary.LittleEndian.PutUint16(tmp[:], f.DestPAN)
		buf = append(buf, tmp[:]...)
		buf = appendAddr(buf, f.Control.DestMode, f.Dest)
	}
	if srcLen > 0 {
		if !f.Control.IntraPAN {
			binary.LittleEndian.PutUint16(tmp[:], f.SrcPAN)
			buf = append(buf, tmp[:]...)
		}
		buf = appendAddr(buf, f.Control.SrcMode, f.Src)
	}

	buf = append(buf, f.Payload...)

	crc := CRC16(buf)
	binary.LittleEndian.PutUint16(tmp[:], crc)
	buf = append(buf, tmp[:]...)
	return buf, nil
}

func appendAddr(buf []byte, mode AddrMode, a Addr) []byte {
	switch mode {
	case AddrModeShort:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], a.Short)
		return append(buf, tmp[:]...)
	case AddrModeExtended:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], a.Ext)
		return append(buf, tmp[:]...)
	default:
		return buf
	}
}

// DecodeResult reports parse success plus whether the on-air CRC matched
// the one this node computed, per spec §3's "only CRC-matching frames
// are presented to MAC" invariant.
type DecodeResult struct {
	Frame   Frame
	CRCOk   bool
}

// Decode parses buf (without the length prefix, including the trailing
// on-air CRC) into a Frame. It never returns ErrReservedAddrMode
// silently: callers must check it and drain/drop per spec §4.2's state
// machine, which treats an illegal addressing-mode combination as "drain
// the FIFO for the remaining bytes and increment dropped" rather than
// a hard parse error.
func Decode(buf []byte) (DecodeResult, error) {
	if len(buf) < 5 {
		return DecodeResult{}, ErrFrameTooShort
	}

	fc := decodeFrameControl(binary.LittleEndian.Uint16(buf[0:2]))
	destLen := addrLen(fc.DestMode)
	srcLen := addrLen(fc.SrcMode)
	if destLen < 0 || srcLen < 0 {
		return DecodeResult{}, ErrReservedAddrMode
	}

	f := Frame{Control: fc, Seq: buf[2]}
	off := 3

	if destLen > 0 {
		if len(buf) < off+2 {
			return DecodeResult{}, ErrFrameTooShort
		}
		f.DestPAN = binary.LittleEndian.Uint16(buf[off:])
		off += 2
		addr, n, err := readAddr(buf[off:], fc.DestMode)
		if err != nil {
			return DecodeResult{}, err
		}
		f.Dest = addr
		off += n
	}

	if srcLen > 0 {
		if !fc.IntraPAN {
			if len(buf) < off+2 {
				return DecodeResult{}, ErrFrameTooShort
			}
			f.SrcPAN = binary.LittleEndian.Uint16(buf[off:])
			off += 2
		} else {
			f.SrcPAN = f.DestPAN
		}
		addr, n, err := readAddr(buf[off:], fc.SrcMode)
		if err != nil {
			return DecodeResult{}, err
		}
		f.Src = addr
		off += n
	}

	if len(buf) < off+2 {
		return DecodeResult{}, ErrFrameTooShort
	}
	payloadEnd := len(buf) - 2
	if payloadEnd < off {
		return DecodeResult{}, ErrFrameTooShort
	}
	f.Payload = buf[off:payloadEnd]

	onAirCRC := binary.LittleEndian.Uint16(buf[payloadEnd:])
	computed := CRC16(buf[:payloadEnd])

	return DecodeResult{Frame: f, CRCOk: computed == onAirCRC}, nil
}

func readAddr(buf []byte, mode AddrMode) (Addr, int, error) {
	switch mode {
	case AddrModeShort:
		if len(buf) < 2 {
			return Addr{}, 0, ErrFrameTooShort
		}
		return Addr{Mode: mode, Short: binary.LittleEndian.Uint16(buf)}, 2, nil
	case AddrModeExtended:
		if len(buf) < 8 {
			return Addr{}, 0, ErrFrameTooShort
		}
		return Addr{Mode: mode, Ext: binary.LittleEndian.Uint64(buf)}, 8, nil
	default:
		return Addr{Mode: mode}, 0, nil
	}
}
