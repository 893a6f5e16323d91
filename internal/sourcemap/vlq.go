// Package sourcemap implements the Source Map v3 codec and lookup engine:
// decoding the VLQ-encoded "mappings" field into an indexable in-memory
// structure, answering bidirectional position queries, concatenating
// independent maps, and re-encoding back to the v3 wire format.
//
// See https://sourcemaps.info/spec.html
package sourcemap

import "strings"

// base64Alphabet is the 64-character alphabet used for VLQ digits in
// source maps: A-Z, a-z, 0-9, +, /. A digit's alphabet index is its
// 6-bit value.
const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// base64Values is a lookup table from byte to 6-bit digit value, -1 for
// bytes outside the alphabet.
var base64Values [128]int

func init() {
	for i := range base64Values {
		base64Values[i] = -1
	}
	for i, c := range base64Alphabet {
		base64Values[c] = i
	}
}

// VLQ constants
const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift // 32
	vlqBaseMask        = vlqBase - 1       // 31 (0x1F), data bits
	vlqContinuationBit = vlqBase           // 32 (0x20)
	vlqSignBit         = 1
)

// EncodeVLQ encodes a signed integer as a base64 VLQ string. The sign is
// carried in the low bit of the carrier: w = (|v| << 1) | (v < 0 ? 1 : 0).
// The carrier is then emitted little-endian, 5 data bits per digit, with
// the continuation bit set on every digit but the last. Zero encodes to
// "A", the one-character minimum.
func EncodeVLQ(value int) string {
	var buf strings.Builder

	var vlq uint64
	if value < 0 {
		vlq = uint64(-value)<<1 | vlqSignBit
	} else {
		vlq = uint64(value) << 1
	}

	for {
		digit := vlq & vlqBaseMask
		vlq >>= vlqBaseShift

		if vlq > 0 {
			digit |= vlqContinuationBit
		}

		buf.WriteByte(base64Alphabet[digit])

		if vlq == 0 {
			break
		}
	}

	return buf.String()
}

// EncodeVLQArray concatenates the VLQ encoding of each value in order,
// with no separator between them.
func EncodeVLQArray(values []int) string {
	var buf strings.Builder
	for _, v := range values {
		buf.WriteString(EncodeVLQ(v))
	}
	return buf.String()
}

// DecodeVLQ decodes a single VLQ integer starting at the front of input
// and returns its value and the number of bytes consumed. byteOffset is
// the position of input[0] within the longer string the caller is
// decoding, used only to annotate errors (DecodeVLQArray passes the
// position within its own input). DecodeVLQ fails with a Error of kind
// ErrInvalidVLQChar if it meets a byte outside the base64 alphabet, or if
// the input ends while a continuation bit is still set.
func DecodeVLQ(input string, byteOffset int) (value int, consumed int, err error) {
	var vlq uint64
	var shift uint64

	for i := 0; i < len(input); i++ {
		c := input[i]
		if c >= 128 || base64Values[c] < 0 {
			return 0, 0, newInvalidVLQCharError(c, byteOffset+i)
		}

		digit := uint64(base64Values[c])
		continuation := digit&vlqContinuationBit != 0
		digit &= vlqBaseMask

		vlq |= digit << shift
		shift += vlqBaseShift
		consumed++

		if !continuation {
			negative := vlq&vlqSignBit != 0
			magnitude := int(vlq >> 1)
			if negative {
				return -magnitude, consumed, nil
			}
			return magnitude, consumed, nil
		}
	}

	return 0, 0, newInvalidVLQCharError(0, byteOffset+len(input))
}

// DecodeVLQArray decodes every VLQ integer packed into input, one after
// another with no separator, until the string is exhausted.
func DecodeVLQArray(input string) ([]int, error) {
	values := make([]int, 0, 4)
	pos := 0
	for pos < len(input) {
		v, consumed, err := DecodeVLQ(input[pos:], pos)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		pos += consumed
	}
	return values, nil
}
