package dialect

import (
	"bytes"

	"github.com/minithermal/print-engine/pkg/raster"
)

// Extended-v2 control frames start with 0x5A and a command id; raster
// data travels in fixed 0x55-prefixed packets of two rows each.
const (
	v2CtrlPrefix = 0x5A
	v2CmdEnergy  = 0x0C

	v2DataPrefix       = 0x55
	v2LinesPerPacket   = 2
	v2PacketTerminator = 0x00

	// v2MaxEnergy is the top of the family's heat scale.
	v2MaxEnergy = 6
)

// v2Handshake is the fixed frame sequence the family expects before any
// job parameters. The two keyed frames carry opaque constants the device
// checks verbatim.
var v2Handshake = [][]byte{
	{v2CtrlPrefix, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	{v2CtrlPrefix, 0x0A, 0xB5, 0x7C, 0x4C, 0xB8, 0xAE, 0x70, 0x51, 0xE6, 0xD3, 0x06},
	{v2CtrlPrefix, 0x0B, 0x66, 0x3B, 0x62, 0x8C, 0x1A, 0x69, 0xBF, 0x54, 0x74, 0x4C},
}

// encodeExtendedV2 produces the full job stream for the 0x5A family:
// handshake, energy, then indexed two-row data packets. Rows keep their
// packed high-order-bit-first order. An odd row count is completed with
// one blank row so every packet carries exactly two rows. The family has
// no speed register; feed pace is governed by the transport's inter-chunk
// delay.
func encodeExtendedV2(bits *raster.Bitmap, p params) EncodedStream {
	var buf bytes.Buffer
	packets := (bits.Height + v2LinesPerPacket - 1) / v2LinesPerPacket
	buf.Grow(packets*(4+v2LinesPerPacket*bits.Stride) + 64)

	for _, frame := range v2Handshake {
		buf.Write(frame)
	}
	buf.Write([]byte{v2CtrlPrefix, v2CmdEnergy, clampV2Energy(p.energy)})

	blank := make([]byte, bits.Stride)
	for i := 0; i < packets; i++ {
		buf.WriteByte(v2DataPrefix)
		buf.WriteByte(byte(i >> 8))
		buf.WriteByte(byte(i))
		for l := 0; l < v2LinesPerPacket; l++ {
			y := i*v2LinesPerPacket + l
			if y < bits.Height {
				buf.Write(bits.Row(y))
			} else {
				buf.Write(blank)
			}
		}
		buf.WriteByte(v2PacketTerminator)
	}
	return buf.Bytes()
}

// clampV2Energy narrows a profile energy to the family's 0..6 scale.
func clampV2Energy(v int) byte {
	if v < 0 {
		return 0
	}
	if v > v2MaxEnergy {
		return v2MaxEnergy
	}
	return byte(v)
}
