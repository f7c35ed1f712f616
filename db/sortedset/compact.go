package sortedset

import (
	"github.com/ordkv/ordkv/util"
)

// The compact representation stores entries as alternating (member, score)
// pairs ordered by (score, member); a member entry is always followed by its
// score entry.

// compactFind locates a member's entry offset by linear scan, skipping the
// interleaved score entries.
func (me *SortedSet) compactFind(member string) (pos uint32, score float64, exists bool) {
	pos, exists = me.seq.Find(me.seq.HeadPos(), []byte(member), 1)
	if !exists {
		return 0, 0, false
	}
	return pos, me.compactScoreAt(pos), true
}

func (me *SortedSet) compactMemberAt(pos uint32) string {
	v, exists := me.seq.Get(pos)
	util.Assertf(exists, "no member entry at offset %d", pos)
	return v.String()
}

func (me *SortedSet) compactScoreAt(memberPos uint32) float64 {
	scorePos, exists := me.seq.Next(memberPos)
	util.Assertf(exists, "member entry at offset %d has no score entry", memberPos)
	v, _ := me.seq.Get(scorePos)
	return parseScoreValue(v)
}

// compactInsert places the pair at its (score, member) ordered position.
// The caller has already established the member is absent.
func (me *SortedSet) compactInsert(member string, score float64) {
	scoreBytes := []byte(formatScore(score))

	pos, exists := me.seq.Index(0)
	for exists {
		curMember := me.compactMemberAt(pos)
		curScore := me.compactScoreAt(pos)
		if curScore > score || (curScore == score && curMember > member) {
			me.seq.InsertBefore(pos, []byte(member))
			displaced, hasDisplaced := me.seq.Next(pos)
			util.Assertf(hasDisplaced, "displaced entry vanished at offset %d", pos)
			me.seq.InsertBefore(displaced, scoreBytes)
			return
		}
		pos, exists = me.compactNextPair(pos)
	}

	me.seq.Push([]byte(member), true)
	me.seq.Push(scoreBytes, true)
}

func (me *SortedSet) compactDeleteAt(memberPos uint32) {
	me.seq.DeleteCount(memberPos, 2)
}

// compactNextPair advances from one member entry to the next.
func (me *SortedSet) compactNextPair(memberPos uint32) (out uint32, exists bool) {
	scorePos, ok := me.seq.Next(memberPos)
	if !ok {
		return 0, false
	}
	return me.seq.Next(scorePos)
}

// compactPrevPair steps from one member entry to the preceding one.
func (me *SortedSet) compactPrevPair(memberPos uint32) (out uint32, exists bool) {
	scorePos, ok := me.seq.Prev(memberPos)
	if !ok {
		return 0, false
	}
	return me.seq.Prev(scorePos)
}

// compactLastPair returns the offset of the final member entry.
func (me *SortedSet) compactLastPair() (out uint32, exists bool) {
	return me.seq.Index(-2)
}

func (me *SortedSet) compactRank(member string, reverse bool) util.Optional[uint64] {
	idx := uint64(0)
	pos, exists := me.seq.Index(0)
	for exists {
		if me.seq.Compare(pos, []byte(member)) {
			if reverse {
				return util.Some(uint64(me.Len()) - 1 - idx)
			}
			return util.Some(idx)
		}
		idx++
		pos, exists = me.compactNextPair(pos)
	}
	return util.None[uint64]()
}
