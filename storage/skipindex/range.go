package skipindex

// ScoreRange selects nodes by score. Open ends are expressed with ±Inf.
type ScoreRange struct {
	Min, Max         float64
	MinOpen, MaxOpen bool
}

func (me ScoreRange) AboveMin(score float64) bool {
	if me.MinOpen {
		return score > me.Min
	}
	return score >= me.Min
}

func (me ScoreRange) BelowMax(score float64) bool {
	if me.MaxOpen {
		return score < me.Max
	}
	return score <= me.Max
}

func (me ScoreRange) Contains(score float64) bool {
	return me.AboveMin(score) && me.BelowMax(score)
}

// HasInScoreRange reports whether the range can intersect the index at all,
// short-circuiting on an inherently empty range or one entirely outside
// [min score, max score].
func (me *SkipIndex) HasInScoreRange(r ScoreRange) bool {
	if r.Min > r.Max || (r.Min == r.Max && (r.MinOpen || r.MaxOpen)) {
		return false
	}
	last := me.tail
	if last == nil || !r.AboveMin(last.score) {
		return false
	}
	first := me.header.levels[0].forward
	if first == nil || !r.BelowMax(first.score) {
		return false
	}
	return true
}

// FirstInScoreRange returns the lowest-ranked node inside the range, or nil.
func (me *SkipIndex) FirstInScoreRange(r ScoreRange) *Node {
	if !me.HasInScoreRange(r) {
		return nil
	}

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && !r.AboveMin(cur.levels[i].forward.score) {
			cur = cur.levels[i].forward
		}
	}

	// an inner range was verified above, so the next node exists
	cur = cur.levels[0].forward
	if !r.BelowMax(cur.score) {
		return nil
	}
	return cur
}

// LastInScoreRange returns the highest-ranked node inside the range, or nil.
func (me *SkipIndex) LastInScoreRange(r ScoreRange) *Node {
	if !me.HasInScoreRange(r) {
		return nil
	}

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && r.BelowMax(cur.levels[i].forward.score) {
			cur = cur.levels[i].forward
		}
	}

	if !r.AboveMin(cur.score) {
		return nil
	}
	return cur
}

// CountInScoreRange counts nodes inside the range in O(log n) using rank
// arithmetic on the boundary nodes.
func (me *SkipIndex) CountInScoreRange(r ScoreRange) uint64 {
	first := me.FirstInScoreRange(r)
	if first == nil {
		return 0
	}
	last := me.LastInScoreRange(r)
	return me.Rank(last.score, last.member) - me.Rank(first.score, first.member) + 1
}

// DeleteScoreRange unlinks every node inside the range, invoking removed for
// each, and returns how many were deleted.
func (me *SkipIndex) DeleteScoreRange(r ScoreRange, removed func(score float64, member string)) int {
	var update [maxLevel]*Node

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && !r.AboveMin(cur.levels[i].forward.score) {
			cur = cur.levels[i].forward
		}
		update[i] = cur
	}

	deleted := 0
	for node := cur.levels[0].forward; node != nil && r.BelowMax(node.score); {
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

// DeleteRankRange unlinks nodes with 1-based ranks in [start, stop],
// invoking removed for each, and returns how many were deleted.
func (me *SkipIndex) DeleteRankRange(start, stop uint64, removed func(score float64, member string)) int {
	var update [maxLevel]*Node
	var traversed uint64

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && traversed+cur.levels[i].span < start {
			traversed += cur.levels[i].span
			cur = cur.levels[i].forward
		}
		update[i] = cur
	}

	deleted := 0
	traversed++
	for node := cur.levels[0].forward; node != nil && traversed <= stop; {
		next := node.levels[0].forward
		me.deleteNode(node, &update)
		if removed != nil {
			removed(node.score, node.member)
		}
		deleted++
		traversed++
		node = next
	}
	return deleted
}
