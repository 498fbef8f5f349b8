package taps

// BoolsToBytes packs bits LSB-first into a byte slice.
func BoolsToBytes(bits []bool) []byte {
	if len(bits) == 0 {
		return nil
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// BytesToBools unpacks the first bits bits of a byte slice, LSB-first.
func BytesToBools(buf []byte, bits int) []bool {
	out := make([]bool, bits)
	for i := 0; i < bits; i++ {
		out[i] = buf[i/8]&(1<<(i%8)) != 0
	}
	return out
}

// BitsToUint32 assembles up to 32 LSB-first bits into a word.
func BitsToUint32(bits []bool) uint32 {
	var val uint32
	for i, bit := range bits {
		if bit {
			val |= 1 << i
		}
	}
	return val
}

// Uint32ToBits expands a word into width LSB-first bits.
func Uint32ToBits(val uint32, width int) []bool {
	bits := make([]bool, width)
	for i := 0; i < width && i < 32; i++ {
		bits[i] = val&(1<<i) != 0
	}
	return bits
}
