package skipindex

import "strings"

// LexBound is one end of a lexicographic range: a member value that is
// inclusive or exclusive, or one of the two sentinels ordering below or
// above every possible member.
type LexBound struct {
	value string
	open  bool

	// -1 orders below everything, +1 above everything, 0 is a real value
	inf int8
}

func LexBoundInclusive(value string) LexBound {
	return LexBound{value: value}
}

func LexBoundExclusive(value string) LexBound {
	return LexBound{value: value, open: true}
}

// LexBoundMin is the "always least" sentinel.
func LexBoundMin() LexBound {
	return LexBound{inf: -1}
}

// LexBoundMax is the "always greatest" sentinel.
func LexBoundMax() LexBound {
	return LexBound{inf: 1}
}

// compareTo orders the bound's value against a member, sentinels included.
func (me LexBound) compareTo(member string) int {
	if me.inf != 0 {
		return int(me.inf)
	}
	return strings.Compare(me.value, member)
}

// LexRange selects nodes by member order; it only makes sense when every
// node in the index carries the same score.
type LexRange struct {
	Min, Max LexBound
}

func (me LexRange) AboveMin(member string) bool {
	cmp := me.Min.compareTo(member)
	if me.Min.open {
		return cmp < 0
	}
	return cmp <= 0
}

func (me LexRange) BelowMax(member string) bool {
	cmp := me.Max.compareTo(member)
	if me.Max.open {
		return cmp > 0
	}
	return cmp >= 0
}

func (me LexRange) Contains(member string) bool {
	return me.AboveMin(member) && me.BelowMax(member)
}

// empty reports whether no member can possibly satisfy the range.
func (me LexRange) empty() bool {
	if me.Min.inf > 0 || me.Max.inf < 0 {
		return true
	}
	if me.Min.inf != 0 || me.Max.inf != 0 {
		return false
	}
	cmp := strings.Compare(me.Min.value, me.Max.value)
	return cmp > 0 || (cmp == 0 && (me.Min.open || me.Max.open))
}

func (me *SkipIndex) HasInLexRange(r LexRange) bool {
	if r.empty() {
		return false
	}
	last := me.tail
	if last == nil || !r.AboveMin(last.member) {
		return false
	}
	first := me.header.levels[0].forward
	if first == nil || !r.BelowMax(first.member) {
		return false
	}
	return true
}

func (me *SkipIndex) FirstInLexRange(r LexRange) *Node {
	if !me.HasInLexRange(r) {
		return nil
	}

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && !r.AboveMin(cur.levels[i].forward.member) {
			cur = cur.levels[i].forward
		}
	}

	cur = cur.levels[0].forward
	if !r.BelowMax(cur.member) {
		return nil
	}
	return cur
}

func (me *SkipIndex) LastInLexRange(r LexRange) *Node {
	if !me.HasInLexRange(r) {
		return nil
	}

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && r.BelowMax(cur.levels[i].forward.member) {
			cur = cur.levels[i].forward
		}
	}

	if !r.AboveMin(cur.member) {
		return nil
	}
	return cur
}

// CountInLexRange counts nodes inside the range via boundary ranks.
func (me *SkipIndex) CountInLexRange(r LexRange) uint64 {
	first := me.FirstInLexRange(r)
	if first == nil {
		return 0
	}
	last := me.LastInLexRange(r)
	return me.Rank(last.score, last.member) - me.Rank(first.score, first.member) + 1
}

// DeleteLexRange unlinks every node inside the range, invoking removed for
// each, and returns how many were deleted.
func (me *SkipIndex) DeleteLexRange(r LexRange, removed func(score float64, member string)) int {
	var update [maxLevel]*Node

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && !r.AboveMin(cur.levels[i].forward.member) {
			cur = cur.levels[i].forward
		}
		update[i] = cur
	}

	deleted := 0
	for node := cur.levels[0].forward; node != nil && r.BelowMax(node.member); {
		next := node.levels[0].forward
		me.deleteNode(node, &update)
		if removed != nil {
			removed(node.score, node.member)
		}
		deleted++
		node = next
	}
	return deleted
}
