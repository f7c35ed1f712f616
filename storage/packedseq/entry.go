package packedseq

import "strconv"

// Value is a decoded entry: either raw bytes or an integer, depending on
// which encoding class the entry used.
type Value struct {
	IsInt bool
	Int   int64
	Bytes []byte
}

func StringValue(s string) Value {
	return Value{Bytes: []byte(s)}
}

func IntValue(v int64) Value {
	return Value{IsInt: true, Int: v}
}

func (me Value) String() string {
	if me.IsInt {
		return strconv.FormatInt(me.Int, 10)
	}
	return string(me.Bytes)
}

// entry is the decoded header of an entry at a given buffer offset.
//
// _______________________________________________________
// | prevlen (1 or 5 bytes) | encoding header | payload  |
// |------------------------------------------------------
type entry struct {
	pos         uint32
	prevLen     uint32
	prevLenSize uint32
	encoding    byte
	lenSize     uint32
	payloadLen  uint32
}

func (me *entry) headerSize() uint32 {
	return me.prevLenSize + me.lenSize
}

func (me *entry) totalSize() uint32 {
	return me.headerSize() + me.payloadLen
}

func (me *entry) payloadPos() uint32 {
	return me.pos + me.headerSize()
}

func (me *PackedSeq) entryAt(pos uint32) (out entry) {
	out.pos = pos
	out.prevLen, out.prevLenSize = decodePrevLen(me.buf[pos:])
	out.encoding, out.lenSize, out.payloadLen = decodeLength(me.buf[pos+out.prevLenSize:])
	return out
}

func (me *PackedSeq) valueOf(ent entry) Value {
	payload := me.buf[ent.payloadPos() : ent.payloadPos()+ent.payloadLen]
	if isStringEncoding(ent.encoding) {
		return Value{Bytes: payload}
	}
	return Value{IsInt: true, Int: loadInteger(payload, ent.encoding)}
}
