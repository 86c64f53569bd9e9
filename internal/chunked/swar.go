package chunked

import "encoding/binary"

const (
	loMask = 0x0101010101010101
	hiMask = 0x8080808080808080
)

// hasByte reports whether any of the 8 bytes packed in word equals b.
//
// The expression ((x - 0x01..01) & ^x & 0x80..80) has a non-zero byte in
// positions where x had a zero byte, so XOR with the broadcast byte first.
func hasByte(word uint64, b byte) bool {
	x := word ^ (uint64(b) * loMask)
	return (x-loMask)&^x&hiMask != 0
}

// skipWords advances i over whole 8-byte words of data that contain none of
// the interesting bytes. It returns the first index whose word may contain
// one, or the start of the final partial word.
func skipWords(data []byte, i int, quote byte, stops []byte, active bool) int {
	for i+8 <= len(data) {
		word := binary.LittleEndian.Uint64(data[i : i+8])
		if quote != 0 && hasByte(word, quote) {
			return i
		}
		if active {
			for _, s := range stops {
				if hasByte(word, s) {
					return i
				}
			}
		}
		i += 8
	}
	return i
}
