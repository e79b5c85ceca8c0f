package mac

import (
	"testing"

	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/wire"
)

func buildDataFrame(t *testing.T, destPAN, dest, srcPAN, src uint16, seq byte, payload []byte) []byte {
	t.Helper()
	f := wire.Frame{
		Control: wire.FrameControl{Type: wire.FrameTypeData, IntraPAN: destPAN == srcPAN, DestMode: wire.AddrModeShort, SrcMode: wire.AddrModeShort},
		Seq:     seq,
		DestPAN: destPAN,
		Dest:    wire.Addr{Mode: wire.AddrModeShort, Short: dest},
		SrcPAN:  srcPAN,
		Src:     wire.Addr{Mode: wire.AddrModeShort, Short: src},
		Payload: payload,
	}
	raw, err := wire.Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return raw
}

func nwkAppPayload(t *testing.T) []byte {
	t.Helper()
	nwk := wire.NwkHeader{Type: wire.NwkTypeData, Dest: 0x0001, Src: 0x0002, PacketLife: 1}
	nwkBytes := nwk.Encode()
	app := wire.AppHeader{TaskID: 1, Profile: 1, Command: 1, Attribute: 1}
	appBytes := app.Encode()
	return append(nwkBytes[:], appBytes[:]...)
}

func newTestParser(selfShort, selfPAN uint16) *Parser {
	neighbors := netcore.NewNeighborTable(8)
	stats := &netcore.Stats{}
	return New(neighbors, stats, NewResponder(nil, nil, nil, selfShort, selfPAN), nil, selfShort, selfPAN, 0)
}

func TestDispatchAcceptsDataAddressedToSelf(t *testing.T) {
	p := newTestParser(0x0001, 0x4742)
	raw := buildDataFrame(t, 0x4742, 0x0001, 0x4742, 0x0002, 5, nwkAppPayload(t))

	if err := p.Dispatch(raw, -40, 0); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	select {
	case pkt := <-p.Data:
		if pkt.MAC.Src.Short != 0x0002 {
			t.Errorf("Src.Short = %#04x, want 0x0002", pkt.MAC.Src.Short)
		}
	default:
		t.Fatal("expected a packet on Data")
	}
}

func TestDispatchDropsForeignPAN(t *testing.T) {
	p := newTestParser(0x0001, 0x4742)
	raw := buildDataFrame(t, 0x9999, 0x0001, 0x9999, 0x0002, 5, nwkAppPayload(t))

	if err := p.Dispatch(raw, -40, 0); err != ErrForeignPAN {
		t.Fatalf("Dispatch error = %v, want ErrForeignPAN", err)
	}
	select {
	case <-p.Data:
		t.Fatal("frame should not have reached Data")
	default:
	}
}

func TestDispatchDedupDropsReplay(t *testing.T) {
	p := newTestParser(0x0001, 0x4742)
	p.Neighbors.InsertOrUpdate(0x0002, func(*netcore.NeighborEntry) {})
	raw := buildDataFrame(t, 0x4742, 0x0001, 0x4742, 0x0002, 7, nwkAppPayload(t))

	if err := p.Dispatch(raw, -40, 0); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	<-p.Data

	if err := p.Dispatch(raw, -40, 0); err != ErrDuplicate {
		t.Fatalf("second Dispatch error = %v, want ErrDuplicate", err)
	}
}

func TestDispatchAcceptsBroadcastDest(t *testing.T) {
	p := newTestParser(0x0001, 0x4742)
	raw := buildDataFrame(t, 0x4742, wire.ShortBroadcast, 0x4742, 0x0002, 9, nwkAppPayload(t))

	if err := p.Dispatch(raw, -40, 0); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	select {
	case <-p.Data:
	default:
		t.Fatal("expected broadcast frame on Data")
	}
}
