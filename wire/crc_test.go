package wire

import "testing"

func TestCRC16MatchesLUTForm(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x00},
		{0xFF},
		{0x01, 0x02, 0x03, 0x04, 0x05},
		[]byte("uNET mesh frame payload for crc exercise"),
	}
	for _, buf := range cases {
		fn := CRC16(buf)
		lut := crc16ByLUT(buf)
		if fn != lut {
			t.Errorf("CRC16(%x) = %#04x, crc16ByLUT = %#04x, want equal", buf, fn, lut)
		}
	}
}

func TestCRC16Deterministic(t *testing.T) {
	buf := []byte{0xAA, 0xBB, 0xCC}
	if CRC16(buf) != CRC16(buf) {
		t.Fatal("CRC16 not deterministic")
	}
}

func TestReverseBitsInvolution(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		if reverseBits(reverseBits(b)) != b {
			t.Fatalf("reverseBits not its own inverse for %#02x", b)
		}
	}
}
