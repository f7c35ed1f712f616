package packedseq

import (
	"bytes"
	"encoding/binary"
	"iter"
)

// PackedSeq is an ordered sequence of variable-length entries packed into a
// single contiguous byte buffer. Entries are self-describing: each one stores
// the byte length of its predecessor (for backward traversal) followed by a
// type+length header and the payload. Strings that render a canonical integer
// are stored in a narrow integer class instead of raw bytes.
//
// All positions handed out by this type are byte offsets into the buffer;
// they are invalidated by any mutation.
type PackedSeq struct {
	buf []byte
}

func New() *PackedSeq {
	buf := make([]byte, headerSize+1)
	binary.LittleEndian.PutUint32(buf[0:4], headerSize+1)
	binary.LittleEndian.PutUint32(buf[4:8], headerSize)
	buf[headerSize] = endByte
	return &PackedSeq{buf: buf}
}

// FromBytes adopts a previously serialized buffer. The caller must not touch
// the slice afterwards.
func FromBytes(buf []byte) *PackedSeq {
	return &PackedSeq{buf: buf}
}

func (me *PackedSeq) Bytes() []byte {
	return me.buf
}

func (me *PackedSeq) SizeBytes() uint32 {
	return binary.LittleEndian.Uint32(me.buf[0:4])
}

func (me *PackedSeq) setSizeBytes(n uint32) {
	binary.LittleEndian.PutUint32(me.buf[0:4], n)
}

func (me *PackedSeq) tailOffset() uint32 {
	return binary.LittleEndian.Uint32(me.buf[4:8])
}

func (me *PackedSeq) setTailOffset(off uint32) {
	binary.LittleEndian.PutUint32(me.buf[4:8], off)
}

func (me *PackedSeq) storedCount() uint16 {
	return binary.LittleEndian.Uint16(me.buf[8:10])
}

func (me *PackedSeq) setStoredCount(n uint16) {
	binary.LittleEndian.PutUint16(me.buf[8:10], n)
}

func (me *PackedSeq) bumpCount(delta int) {
	count := me.storedCount()
	if count < maxStoredCount {
		me.setStoredCount(uint16(int(count) + delta))
	}
}

// NumEntries returns the number of entries. The stored count saturates at
// 65535; past that the length is recomputed with a full walk and re-cached
// once it drops back into range.
func (me *PackedSeq) NumEntries() int {
	if count := me.storedCount(); count < maxStoredCount {
		return int(count)
	}
	n := 0
	for pos := uint32(headerSize); me.buf[pos] != endByte; {
		ent := me.entryAt(pos)
		pos += ent.totalSize()
		n++
	}
	if n < maxStoredCount {
		me.setStoredCount(uint16(n))
	}
	return n
}

func (me *PackedSeq) endPos() uint32 {
	return uint32(len(me.buf)) - 1
}

// HeadPos returns the offset of the first entry slot. When the sequence is
// empty it addresses the terminator, which End reports.
func (me *PackedSeq) HeadPos() uint32 {
	return headerSize
}

// TailPos returns the offset of last entry, or the terminator when empty.
func (me *PackedSeq) TailPos() uint32 {
	return me.tailOffset()
}

// End reports whether pos addresses the terminator rather than an entry.
func (me *PackedSeq) End(pos uint32) bool {
	return me.buf[pos] == endByte
}

func (me *PackedSeq) Next(pos uint32) (out uint32, exists bool) {
	if me.End(pos) {
		return 0, false
	}
	ent := me.entryAt(pos)
	next := pos + ent.totalSize()
	if me.End(next) {
		return 0, false
	}
	return next, true
}

func (me *PackedSeq) Prev(pos uint32) (out uint32, exists bool) {
	if pos == headerSize {
		return 0, false
	}
	if me.End(pos) {
		tail := me.tailOffset()
		if me.End(tail) {
			return 0, false
		}
		return tail, true
	}
	ent := me.entryAt(pos)
	return pos - ent.prevLen, true
}

// Index resolves an entry index to its byte offset. Negative indices count
// from the tail, -1 being the last entry.
func (me *PackedSeq) Index(i int) (out uint32, exists bool) {
	if i < 0 {
		i = -i - 1
		pos := me.tailOffset()
		if me.End(pos) {
			return 0, false
		}
		for i > 0 {
			ent := me.entryAt(pos)
			if ent.prevLen == 0 {
				return 0, false
			}
			pos -= ent.prevLen
			i--
		}
		return pos, true
	}
	pos := uint32(headerSize)
	for {
		if me.End(pos) {
			return 0, false
		}
		if i == 0 {
			return pos, true
		}
		ent := me.entryAt(pos)
		pos += ent.totalSize()
		i--
	}
}

func (me *PackedSeq) Get(pos uint32) (out Value, exists bool) {
	if pos < headerSize || pos >= me.endPos() || me.End(pos) {
		return out, false
	}
	return me.valueOf(me.entryAt(pos)), true
}

// Push appends value at the tail, or prepends at the head when toTail is
// false.
func (me *PackedSeq) Push(value []byte, toTail bool) {
	if toTail {
		me.insert(me.endPos(), value)
	} else {
		me.insert(headerSize, value)
	}
}

// InsertBefore places value immediately before the entry at pos. Passing the
// terminator position appends at the tail.
func (me *PackedSeq) InsertBefore(pos uint32, value []byte) {
	me.insert(pos, value)
}

// Delete removes the entry at pos. The same offset subsequently addresses
// the entry that followed it (or the terminator).
func (me *PackedSeq) Delete(pos uint32) {
	me.deleteAt(pos, 1)
}

// DeleteCount removes up to count consecutive entries starting at pos and
// returns how many were removed.
func (me *PackedSeq) DeleteCount(pos uint32, count int) int {
	return me.deleteAt(pos, count)
}

// DeleteRange removes up to count entries starting at entry index (negative
// indices count from the tail) and returns how many were removed.
func (me *PackedSeq) DeleteRange(index int, count int) int {
	pos, exists := me.Index(index)
	if !exists {
		return 0
	}
	return me.deleteAt(pos, count)
}

// Find scans forward from pos for an entry equal to target, skipping skip
// entries between comparisons. Integer-encoded entries compare by decoded
// value when the target itself renders a canonical integer.
func (me *PackedSeq) Find(pos uint32, target []byte, skip int) (out uint32, exists bool) {
	targetInt, _, targetIsInt := tryIntEncoding(target)
	skipCount := 0
	for !me.End(pos) {
		ent := me.entryAt(pos)
		if skipCount == 0 {
			if me.entryEqual(ent, target, targetInt, targetIsInt) {
				return pos, true
			}
			skipCount = skip
		} else {
			skipCount--
		}
		pos += ent.totalSize()
	}
	return 0, false
}

// Compare reports whether the entry at pos equals target, comparing raw
// bytes for string entries and decoded values for integer entries.
func (me *PackedSeq) Compare(pos uint32, target []byte) bool {
	ent := me.entryAt(pos)
	targetInt, _, targetIsInt := tryIntEncoding(target)
	return me.entryEqual(ent, target, targetInt, targetIsInt)
}

func (me *PackedSeq) entryEqual(ent entry, target []byte, targetInt int64, targetIsInt bool) bool {
	payload := me.buf[ent.payloadPos() : ent.payloadPos()+ent.payloadLen]
	if isStringEncoding(ent.encoding) {
		return bytes.Equal(payload, target)
	}
	if !targetIsInt {
		return false
	}
	return loadInteger(payload, ent.encoding) == targetInt
}

func (me *PackedSeq) Entries() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for pos := uint32(headerSize); !me.End(pos); {
			ent := me.entryAt(pos)
			if !yield(me.valueOf(ent)) {
				return
			}
			pos += ent.totalSize()
		}
	}
}

func (me *PackedSeq) insert(pos uint32, value []byte) {
	curLen := uint32(len(me.buf))
	appendAtEnd := me.End(pos)

	// length of the entry that will precede the new one
	var prevLen uint32
	if !appendAtEnd {
		prevLen = me.entryAt(pos).prevLen
	} else if tail := me.tailOffset(); !me.End(tail) {
		tailEnt := me.entryAt(tail)
		prevLen = tailEnt.totalSize()
	}

	intVal, encoding, isInt := tryIntEncoding(value)
	var payloadLen uint32
	if isInt {
		payloadLen = intPayloadBytes(encoding)
	} else {
		encoding = str06
		payloadLen = uint32(len(value))
	}
	reqLen := prevLenBytes(prevLen) + encodeLength(nil, encoding, payloadLen) + payloadLen

	// Width the follower's prevlen slot must end up with. Oversized slots
	// are kept as-is; too-narrow slots grow by four bytes.
	var followerSlot, followerGrow uint32
	if !appendAtEnd {
		followerSlot = me.entryAt(pos).prevLenSize
		if needed := prevLenBytes(reqLen); followerSlot < needed {
			followerGrow = needed - followerSlot
			followerSlot = needed
		}
	}

	next := make([]byte, curLen+reqLen+followerGrow)
	copy(next, me.buf[:pos])
	if !appendAtEnd {
		// shift the follower and everything after it, leaving room for its
		// (possibly grown) prevlen slot
		oldFollower := me.entryAt(pos)
		copy(next[pos+reqLen+followerSlot:], me.buf[pos+oldFollower.prevLenSize:curLen-1])
	}
	next[len(next)-1] = endByte
	me.buf = next

	// write the new entry
	w := pos
	w += encodePrevLen(me.buf[w:], prevLen)
	w += encodeLength(me.buf[w:], encoding, payloadLen)
	if isInt {
		saveInteger(me.buf[w:], intVal, encoding)
	} else {
		copy(me.buf[w:], value)
	}

	me.setSizeBytes(uint32(len(me.buf)))
	if appendAtEnd {
		me.setTailOffset(pos)
	} else {
		followerPos := pos + reqLen
		if followerSlot == bigPrevLenSize {
			encodePrevLenWide(me.buf[followerPos:], reqLen)
		} else {
			encodePrevLen(me.buf[followerPos:], reqLen)
		}
		newTail := me.tailOffset() + reqLen
		// the grown slot only shifts the tail when the follower is not
		// itself the tail entry
		follower := me.entryAt(followerPos)
		if !me.End(followerPos + follower.totalSize()) {
			newTail += followerGrow
		}
		me.setTailOffset(newTail)
	}
	me.bumpCount(1)

	if followerGrow != 0 {
		me.cascadeUpdate(pos + reqLen)
	}
}

func (me *PackedSeq) deleteAt(pos uint32, count int) int {
	if me.End(pos) || count <= 0 {
		return 0
	}
	first := me.entryAt(pos)

	deleted := 0
	cut := pos
	for i := 0; i < count && !me.End(cut); i++ {
		cutEnt := me.entryAt(cut)
		cut += cutEnt.totalSize()
		deleted++
	}
	totLen := cut - pos
	if totLen == 0 {
		return 0
	}

	curLen := uint32(len(me.buf))
	if !me.End(cut) {
		// The entry at cut survives and takes over first's predecessor;
		// its prevlen slot keeps its width unless too narrow to hold it.
		survivor := me.entryAt(cut)
		slot := survivor.prevLenSize
		var grow uint32
		if needed := prevLenBytes(first.prevLen); slot < needed {
			grow = needed - slot
			slot = needed
		}

		next := make([]byte, curLen-totLen+grow)
		copy(next, me.buf[:pos])
		copy(next[pos+slot:], me.buf[cut+survivor.prevLenSize:curLen])
		me.buf = next
		if slot == bigPrevLenSize {
			encodePrevLenWide(me.buf[pos:], first.prevLen)
		} else {
			encodePrevLen(me.buf[pos:], first.prevLen)
		}

		me.setSizeBytes(uint32(len(me.buf)))
		oldTail := me.tailOffset()
		if oldTail == cut {
			me.setTailOffset(pos)
		} else {
			me.setTailOffset(oldTail - totLen + grow)
		}
		me.bumpCount(-deleted)

		if grow != 0 {
			me.cascadeUpdate(pos)
		}
	} else {
		// deleted through the end; the previous entry becomes the tail
		next := make([]byte, curLen-totLen)
		copy(next, me.buf[:pos])
		next[len(next)-1] = endByte
		me.buf = next

		me.setSizeBytes(uint32(len(me.buf)))
		if pos == headerSize {
			me.setTailOffset(headerSize)
		} else {
			me.setTailOffset(pos - first.prevLen)
		}
		me.bumpCount(-deleted)
	}
	return deleted
}

// cascadeUpdate repairs previous-length fields forward from pos after a
// size-changing mutation. Slots only ever grow or stay oversized; the pass
// stops at the first entry whose stored width already suffices.
func (me *PackedSeq) cascadeUpdate(pos uint32) {
	for !me.End(pos) {
		cur := me.entryAt(pos)
		rawLen := cur.totalSize()
		nextPos := pos + rawLen
		if me.End(nextPos) {
			break
		}
		next := me.entryAt(nextPos)
		if next.prevLen == rawLen {
			break
		}
		if needed := prevLenBytes(rawLen); next.prevLenSize >= needed {
			// wide-enough slot: rewrite in place at its existing width
			if next.prevLenSize == bigPrevLenSize {
				encodePrevLenWide(me.buf[nextPos:], rawLen)
			} else {
				encodePrevLen(me.buf[nextPos:], rawLen)
			}
			break
		}

		// grow next's prevlen slot in place and keep walking
		grow := bigPrevLenSize - next.prevLenSize
		curLen := uint32(len(me.buf))
		grown := make([]byte, curLen+grow)
		copy(grown, me.buf[:nextPos])
		copy(grown[nextPos+bigPrevLenSize:], me.buf[nextPos+next.prevLenSize:curLen])
		me.buf = grown
		encodePrevLenWide(me.buf[nextPos:], rawLen)

		me.setSizeBytes(uint32(len(me.buf)))
		if tail := me.tailOffset(); tail > nextPos {
			me.setTailOffset(tail + grow)
		}
		pos = nextPos
	}
}
