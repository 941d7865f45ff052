package sv

import "golang.org/x/exp/constraints"

// tlvHeaderSize is one tag byte and one short-form length byte
const tlvHeaderSize = 2

// readHeader returns the tag and short-form length at cursor
func readHeader(data []byte, cursor int) (tag byte, length int, ok bool) {
	if cursor < 0 || cursor+tlvHeaderSize > len(data) {
		return 0, 0, false
	}
	return data[cursor], int(data[cursor+1]), true
}

// readValue returns the value window of the TLV whose header starts at cursor
func readValue(data []byte, cursor, length int) ([]byte, bool) {
	start := cursor + tlvHeaderSize
	end := start + length
	if end > len(data) {
		return nil, false
	}
	return data[start:end:end], true
}

// readUint assembles the first width bytes of value most significant byte first
func readUint[T constraints.Unsigned](value []byte, width int) (T, bool) {
	if len(value) < width {
		return 0, false
	}
	var acc uint64
	for _, b := range value[:width] {
		acc = acc<<8 | uint64(b)
	}
	return T(acc), true
}
