package dialect

import "testing"

func TestCRC8_KnownVector(t *testing.T) {
	// CRC-8/ATM check value for the standard nine-digit input.
	got := crc8([]byte("123456789"))
	if got != 0xF4 {
		t.Errorf("expected 0xF4, got 0x%02X", got)
	}
}

func TestCRC8_Empty(t *testing.T) {
	if got := crc8(nil); got != 0x00 {
		t.Errorf("expected 0x00 for empty input, got 0x%02X", got)
	}
}

func TestCRC8_TableHead(t *testing.T) {
	// First entries of the polynomial 0x07 table.
	want := []byte{0x00, 0x07, 0x0E, 0x09, 0x1C, 0x1B, 0x12, 0x15}
	for i, w := range want {
		if crc8Table[i] != w {
			t.Errorf("table[%d]: expected 0x%02X, got 0x%02X", i, w, crc8Table[i])
		}
	}
}

func TestCRC8_SingleBytes(t *testing.T) {
	if got := crc8([]byte{0x00}); got != 0x00 {
		t.Errorf("crc8({0x00}): expected 0x00, got 0x%02X", got)
	}
	if got := crc8([]byte{0x01}); got != 0x07 {
		t.Errorf("crc8({0x01}): expected 0x07, got 0x%02X", got)
	}
}
