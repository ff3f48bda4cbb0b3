package tokenizer

import "encoding/binary"

// PackOffsets encodes token byte offsets as little-endian uint32 values for
// compact storage alongside each document.
func PackOffsets(tokens []Token) []byte {
	buf := make([]byte, 4*len(tokens))
	for i, t := range tokens {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(t.ByteOffset))
	}
	return buf
}

// UnpackOffsets decodes a blob produced by PackOffsets.
func UnpackOffsets(blob []byte) []int {
	n := len(blob) / 4
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
