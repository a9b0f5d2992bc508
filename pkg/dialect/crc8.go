package dialect

// crc8Table is the lookup table for polynomial 0x07 (CRC-8/ATM), the
// checksum the standard-v1 family puts after every frame payload.
var crc8Table = makeCRC8Table(0x07)

func makeCRC8Table(poly byte) [256]byte {
	var table [256]byte
	for i := range table {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// crc8 checksums a frame payload: init 0x00, no reflection, no final xor.
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}
