package p3

// The decoder's frame checksum is a CRC16 variant: polynomial 0x1021 table,
// initial value 0xFFFF, but each data byte is folded into the shifted
// remainder rather than the table index, and the final value is byte-swapped
// before it is embedded big-endian in the header. This matches what the
// hardware emits; a textbook CCITT implementation does not.

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// Checksum computes the frame checksum as it appears on the wire.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = crcTable[byte(crc>>8)] ^ crc<<8 ^ uint16(b)
	}
	return crc<<8 | crc>>8
}

// checksumZeroed computes the checksum of an unescaped frame with its CRC
// header bytes treated as zero, which is how the decoder computes it before
// embedding.
func checksumZeroed(frame []byte) uint16 {
	crc := uint16(0xFFFF)
	for i, b := range frame {
		if i == 4 || i == 5 {
			b = 0
		}
		crc = crcTable[byte(crc>>8)] ^ crc<<8 ^ uint16(b)
	}
	return crc<<8 | crc>>8
}
