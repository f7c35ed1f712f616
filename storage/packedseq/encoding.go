package packedseq

import (
	"encoding/binary"
	"math"
	"strconv"
)

const (
	// ______________________________________________________________
	// | total_bytes: u32 LE | tail_offset: u32 LE | count: u16 LE   |
	// |--------------------------------------------------------------
	// | (entry)*                                           | 0xFF   |
	// |--------------------------------------------------------------
	headerSize = 10
	endByte    = 0xFF

	// A previous-entry length below this fits a single byte; larger lengths
	// are stored as the marker byte followed by a u32 LE.
	bigPrevLenMarker = 0xFE
	bigPrevLenSize   = 5

	// The count header field saturates here; past it the true entry count
	// requires a full walk.
	maxStoredCount = math.MaxUint16
)

// Entry payload encodings. Strings come in three length classes keyed by the
// top two bits; integers all start with 0b11 and select a width in the low
// nibble, with 0xF1..0xFD embedding the values 0..12 directly in the header.
//
// ____________________________________________________________
// | 00llllll                      | string, len <= 63        |
// | 01llllll llllllll             | string, len <= 16383     |
// | 10000000 + u32 BE             | string, 32-bit length    |
// | 11000000 + i16 LE             | integer                  |
// | 11010000 + i32 LE             | integer                  |
// | 11100000 + i64 LE             | integer                  |
// | 11110000 + i24 LE             | integer                  |
// | 11111110 + i8                 | integer                  |
// | 1111xxxx, xxxx in 0001..1101  | immediate value 0..12    |
// |-----------------------------------------------------------
const (
	strMask = 0xC0
	str06   = 0x00
	str14   = 0x40
	str32   = 0x80

	int16Enc = 0xC0
	int32Enc = 0xD0
	int64Enc = 0xE0
	int24Enc = 0xF0
	int8Enc  = 0xFE

	immediateMask = 0x0F
	immediateMin  = 0xF1
	immediateMax  = 0xFD
)

func isStringEncoding(encoding byte) bool {
	return encoding&strMask != strMask
}

func prevLenBytes(prevLen uint32) uint32 {
	if prevLen < bigPrevLenMarker {
		return 1
	}
	return bigPrevLenSize
}

func decodePrevLen(b []byte) (prevLen uint32, prevLenSize uint32) {
	if b[0] < bigPrevLenMarker {
		return uint32(b[0]), 1
	}
	return binary.LittleEndian.Uint32(b[1:5]), bigPrevLenSize
}

func encodePrevLen(dst []byte, prevLen uint32) uint32 {
	if prevLen < bigPrevLenMarker {
		dst[0] = byte(prevLen)
		return 1
	}
	encodePrevLenWide(dst, prevLen)
	return bigPrevLenSize
}

// encodePrevLenWide always uses the five-byte form, even for small lengths.
// Cascade repair leaves oversized slots in place rather than shrinking them,
// so re-encoding into an existing wide slot must not change its width.
func encodePrevLenWide(dst []byte, prevLen uint32) {
	dst[0] = bigPrevLenMarker
	binary.LittleEndian.PutUint32(dst[1:5], prevLen)
}

// decodeLength reads an entry's payload header starting at b[0], returning
// the encoding byte (masked to the class bits for strings), the header's own
// size, and the payload size.
func decodeLength(b []byte) (encoding byte, lenSize uint32, payloadLen uint32) {
	encoding = b[0]
	if isStringEncoding(encoding) {
		switch encoding & strMask {
		case str06:
			return str06, 1, uint32(b[0] & 0x3F)
		case str14:
			return str14, 2, uint32(b[0]&0x3F)<<8 | uint32(b[1])
		default:
			return str32, 5, binary.BigEndian.Uint32(b[1:5])
		}
	}
	return encoding, 1, intPayloadBytes(encoding)
}

// encodeLength writes the payload header for a string of rawLen bytes or,
// for integers, the single encoding byte. Returns the header size. A nil
// dst only sizes the header.
func encodeLength(dst []byte, encoding byte, rawLen uint32) uint32 {
	if !isStringEncoding(encoding) {
		if dst != nil {
			dst[0] = encoding
		}
		return 1
	}
	switch {
	case rawLen <= 0x3F:
		if dst != nil {
			dst[0] = str06 | byte(rawLen)
		}
		return 1
	case rawLen <= 0x3FFF:
		if dst != nil {
			dst[0] = str14 | byte(rawLen>>8)
			dst[1] = byte(rawLen)
		}
		return 2
	default:
		if dst != nil {
			dst[0] = str32
			binary.BigEndian.PutUint32(dst[1:5], rawLen)
		}
		return 5
	}
}

func intPayloadBytes(encoding byte) uint32 {
	switch encoding {
	case int8Enc:
		return 1
	case int16Enc:
		return 2
	case int24Enc:
		return 3
	case int32Enc:
		return 4
	case int64Enc:
		return 8
	}
	// immediate: the value lives in the encoding byte itself
	return 0
}

// tryIntEncoding attempts to reinterpret value as a canonically formatted
// integer, picking the narrowest width class that holds it. Non-canonical
// renderings (leading zeros, a leading '+') stay strings so that decoding
// reproduces the original bytes exactly.
func tryIntEncoding(value []byte) (v int64, encoding byte, ok bool) {
	if len(value) == 0 || len(value) >= 32 {
		return 0, 0, false
	}
	s := string(value)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(v, 10) != s {
		return 0, 0, false
	}
	switch {
	case v >= 0 && v <= 12:
		encoding = immediateMin + byte(v)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		encoding = int8Enc
	case v >= math.MinInt16 && v <= math.MaxInt16:
		encoding = int16Enc
	case v >= -(1<<23) && v <= (1<<23)-1:
		encoding = int24Enc
	case v >= math.MinInt32 && v <= math.MaxInt32:
		encoding = int32Enc
	default:
		encoding = int64Enc
	}
	return v, encoding, true
}

func saveInteger(dst []byte, v int64, encoding byte) {
	switch encoding {
	case int8Enc:
		dst[0] = byte(v)
	case int16Enc:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case int24Enc:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
	case int32Enc:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case int64Enc:
		binary.LittleEndian.PutUint64(dst, uint64(v))
	default:
		// immediate, nothing stored outside the encoding byte
	}
}

func loadInteger(b []byte, encoding byte) int64 {
	switch encoding {
	case int8Enc:
		return int64(int8(b[0]))
	case int16Enc:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case int24Enc:
		v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		return int64(int32(v<<8) >> 8)
	case int32Enc:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case int64Enc:
		return int64(binary.LittleEndian.Uint64(b))
	}
	return int64(encoding&immediateMask) - 1
}
