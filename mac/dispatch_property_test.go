package mac

import (
	"testing"

	"pgregory.net/rapid"
)

// TestDispatchNeverPanicsOnArbitraryBytes fuzzes Parser.Dispatch with
// byte slices rapid generates completely independent of wire.Encode,
// the same way fx25_send_test.go exercises the HDLC decoder with
// freeform byte strings rather than only well-formed frames: a parser
// must fail closed (return an error, never panic) on garbage input,
// since a corrupted-but-CRC-passing frame is indistinguishable from a
// well-formed one until every field is validated.
func TestDispatchNeverPanicsOnArbitraryBytes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := newTestParser(0x0001, 0x4742)
		raw := rapid.SliceOfN(rapid.Byte(), 0, 127).Draw(rt, "raw")

		defer func() {
			if r := recover(); r != nil {
				rt.Fatalf("Dispatch panicked on %x: %v", raw, r)
			}
		}()
		_ = p.Dispatch(raw, -50, 0)
	})
}

// TestDispatchRoundTripsWellFormedDataFrames generates well-formed
// data frames across the address/PAN space and checks the filter rule
// is exactly "matches self PAN and (self short addr or broadcast)".
func TestDispatchRoundTripsWellFormedDataFrames(t *testing.T) {
	const selfShort, selfPAN = uint16(0x0001), uint16(0x4742)

	rapid.Check(t, func(rt *rapid.T) {
		destPAN := rapid.SampledFrom([]uint16{selfPAN, 0x9999}).Draw(rt, "destPAN")
		dest := rapid.SampledFrom([]uint16{selfShort, 0xABCD, 0xFFFF}).Draw(rt, "dest")
		seq := byte(rapid.IntRange(0, 255).Draw(rt, "seq"))

		p := newTestParser(selfShort, selfPAN)
		raw := buildDataFrame(t, destPAN, dest, selfPAN, 0x0002, seq, nwkAppPayload(t))

		err := p.Dispatch(raw, -50, 0)
		wantAccept := destPAN == selfPAN && (dest == selfShort || dest == 0xFFFF)

		select {
		case <-p.Data:
			if !wantAccept {
				rt.Fatalf("frame with destPAN=%#04x dest=%#04x reached Data but should have been filtered", destPAN, dest)
			}
		default:
			if wantAccept {
				rt.Fatalf("frame with destPAN=%#04x dest=%#04x should have reached Data, err=%v", destPAN, dest, err)
			}
		}
	})
}
