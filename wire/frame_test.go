package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Control: FrameControl{
			Type:     FrameTypeData,
			DestMode: AddrModeShort,
			SrcMode:  AddrModeShort,
			IntraPAN: true,
		},
		Seq:     42,
		DestPAN: 0x1234,
		Dest:    Addr{Mode: AddrModeShort, Short: 0x0002},
		SrcPAN:  0x1234,
		Src:     Addr{Mode: AddrModeShort, Short: 0x0001},
		Payload: []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}

	buf, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	res, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !res.CRCOk {
		t.Fatal("CRC mismatch on round trip")
	}
	if res.Frame.Seq != f.Seq {
		t.Errorf("Seq = %d, want %d", res.Frame.Seq, f.Seq)
	}
	if res.Frame.Dest.Short != f.Dest.Short {
		t.Errorf("Dest.Short = %#04x, want %#04x", res.Frame.Dest.Short, f.Dest.Short)
	}
	if res.Frame.Src.Short != f.Src.Short {
		t.Errorf("Src.Short = %#04x, want %#04x", res.Frame.Src.Short, f.Src.Short)
	}
	if !bytes.Equal(res.Frame.Payload, f.Payload) {
		t.Errorf("Payload = %x, want %x", res.Frame.Payload, f.Payload)
	}
}

func TestEncodeExtendedAddressingAcrossPANs(t *testing.T) {
	f := Frame{
		Control: FrameControl{
			Type:     FrameTypeData,
			DestMode: AddrModeExtended,
			SrcMode:  AddrModeExtended,
		},
		Seq:     1,
		DestPAN: 0x0001,
		Dest:    Addr{Mode: AddrModeExtended, Ext: 0x0011223344556677},
		SrcPAN:  0x0002,
		Src:     Addr{Mode: AddrModeExtended, Ext: 0x8877665544332200},
		Payload: []byte{1, 2, 3},
	}

	buf, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !res.CRCOk {
		t.Fatal("CRC mismatch")
	}
	if res.Frame.Dest.Ext != f.Dest.Ext || res.Frame.Src.Ext != f.Src.Ext {
		t.Fatal("extended addresses did not round-trip")
	}
	if res.Frame.SrcPAN != f.SrcPAN {
		t.Errorf("SrcPAN = %#04x, want %#04x", res.Frame.SrcPAN, f.SrcPAN)
	}
}

func TestDecodeRejectsReservedAddrMode(t *testing.T) {
	buf := []byte{0x00, 0x04, 0x00, 0x00, 0x00} // DestMode bits = 0b01 at position 10-11 -> 0x0400
	_, err := Decode(buf)
	if err != ErrReservedAddrMode {
		t.Fatalf("err = %v, want ErrReservedAddrMode", err)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x00})
	if err != ErrFrameTooShort {
		t.Fatalf("err = %v, want ErrFrameTooShort", err)
	}
}

func TestDecodeFlagsCorruptedCRC(t *testing.T) {
	f := Frame{
		Control: FrameControl{Type: FrameTypeData, DestMode: AddrModeNone, SrcMode: AddrModeNone},
		Seq:     7,
		Payload: []byte{1, 2, 3},
	}
	buf, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf[len(buf)-1] ^= 0xFF

	res, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.CRCOk {
		t.Fatal("expected CRC mismatch after corruption")
	}
}

func TestEncodeRejectsOversizeFrame(t *testing.T) {
	f := Frame{
		Control: FrameControl{Type: FrameTypeData, DestMode: AddrModeShort, SrcMode: AddrModeShort},
		Payload: make([]byte, MaxOnAir),
	}
	_, err := Encode(f)
	if err == nil {
		t.Fatal("expected ErrFrameTooLong")
	}
}

func TestNwkAndAppHeaderRoundTrip(t *testing.T) {
	nh := NwkHeader{Type: NwkTypeData, Flags: NwkFlagAckReq, Dest: 0x0002, Src: 0x0001, PacketLife: 5}
	enc := nh.Encode()
	dec, rest, err := DecodeNwkHeader(enc[:])
	if err != nil {
		t.Fatalf("DecodeNwkHeader: %v", err)
	}
	if dec != nh {
		t.Errorf("NwkHeader round trip: got %+v, want %+v", dec, nh)
	}
	if len(rest) != 0 {
		t.Errorf("rest len = %d, want 0", len(rest))
	}

	ah := AppHeader{TaskID: 1, Profile: 2, Command: 3, Attribute: 4}
	aenc := ah.Encode()
	adec, arest, err := DecodeAppHeader(aenc[:])
	if err != nil {
		t.Fatalf("DecodeAppHeader: %v", err)
	}
	if adec != ah {
		t.Errorf("AppHeader round trip: got %+v, want %+v", adec, ah)
	}
	if len(arest) != 0 {
		t.Errorf("rest len = %d, want 0", len(arest))
	}
}

func TestBeaconRoundTrip(t *testing.T) {
	b := Beacon{PANID: 0xCAFE, CoordShort: 0x0001, Depth: 3, NeighborCount: 5, RouterCapacity: true}
	enc := b.Encode()
	dec, err := DecodeBeacon(enc[:])
	if err != nil {
		t.Fatalf("DecodeBeacon: %v", err)
	}
	if dec != b {
		t.Errorf("Beacon round trip: got %+v, want %+v", dec, b)
	}
}
