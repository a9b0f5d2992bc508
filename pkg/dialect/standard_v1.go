package dialect

import (
	"bytes"

	"github.com/minithermal/print-engine/pkg/raster"
)

// Standard-v1 frame layout: 0x22 0x21, command id, 0x00, little-endian
// payload length, payload, CRC-8 over the payload, 0xFF.
const (
	v1Preamble0 = 0x22
	v1Preamble1 = 0x21
	v1Footer    = 0xFF
)

// Standard-v1 command ids.
const (
	v1CmdGetStatus     = 0xA1
	v1CmdSetIntensity  = 0xA2
	v1CmdPrintRequest  = 0xA9
	v1CmdPrintComplete = 0xAA
	v1CmdGetBattery    = 0xAB
	v1CmdCancelPrint   = 0xAC
	v1CmdFlushData     = 0xAD
	v1CmdGetVersion    = 0xB1
)

// Standard-v1 print request directives.
const (
	v1ModeImage = 0x00
	v1ModeText  = 0x01
)

// v1MinLines is the shortest raster the head accepts. Shorter jobs keep
// their real line count in the print request but the data is padded with
// blank lines up to this floor.
const v1MinLines = 90

// v1Frame builds one framed command.
func v1Frame(cmd byte, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame,
		v1Preamble0, v1Preamble1,
		cmd, 0x00,
		byte(len(payload)), byte(len(payload)>>8),
	)
	frame = append(frame, payload...)
	frame = append(frame, crc8(payload), v1Footer)
	return frame
}

// encodeStandardV1 produces the full job stream for the 0x22 0x21
// family: set intensity, print request, raw raster rows, flush. Raster
// bytes travel with the low-order bit first, so each packed row byte is
// reversed on the way out. Padding rows are all white and need no
// reversal.
func encodeStandardV1(bits *raster.Bitmap, mode Mode, p params) EncodedStream {
	modeByte := byte(v1ModeImage)
	if mode == ModeText {
		modeByte = v1ModeText
	}

	var buf bytes.Buffer
	buf.Grow(len(bits.Data) + v1MinLines*bits.Stride + 64)

	buf.Write(v1Frame(v1CmdSetIntensity, []byte{clampByte(p.energy)}))
	buf.Write(v1Frame(v1CmdPrintRequest, []byte{
		byte(bits.Height), byte(bits.Height >> 8),
		clampByte(p.speed),
		modeByte,
	}))

	for _, b := range bits.Data {
		buf.WriteByte(reverseBits(b))
	}
	if bits.Height < v1MinLines {
		buf.Write(make([]byte, (v1MinLines-bits.Height)*bits.Stride))
	}

	buf.Write(v1Frame(v1CmdFlushData, []byte{0x00}))
	return buf.Bytes()
}

// reverseBits mirrors the bit order of one byte.
func reverseBits(b byte) byte {
	b = b>>4 | b<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}
