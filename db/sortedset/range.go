package sortedset

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ordkv/ordkv/storage/skipindex"
	"github.com/ordkv/ordkv/util"
)

// RankRange selects by 0-based position, both ends inclusive; negative
// indices count from the tail, -1 being the last member.
type RankRange struct {
	Start, Stop int64
}

// RangeArgs tunes a range query. A Limit of zero or below means unbounded;
// Offset skips that many in-range members from the chosen end.
type RangeArgs struct {
	Reverse    bool
	Offset     int64
	Limit      int64
	WithScores bool
}

// RangedMember is one range result; Score is present only when the query
// asked for scores.
type RangedMember struct {
	Member string
	Score  util.Optional[float64]
}

func (me RangeArgs) result(member string, score float64) RangedMember {
	out := RangedMember{Member: member}
	if me.WithScores {
		out.Score = util.Some(score)
	}
	return out
}

// ParseScoreRange builds a score range from textual bounds: a float,
// "+inf"/"-inf", optionally prefixed with '(' for exclusive.
func ParseScoreRange(min, max string) (out skipindex.ScoreRange, _ error) {
	var err error
	if out.Min, out.MinOpen, err = parseScoreBound(min); err != nil {
		return out, err
	}
	out.Max, out.MaxOpen, err = parseScoreBound(max)
	return out, err
}

func parseScoreBound(s string) (v float64, open bool, _ error) {
	raw := s
	if len(s) > 0 && s[0] == '(' {
		open = true
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false, errors.Wrapf(ErrInvalidRange, "score bound %q", raw)
	}
	return v, open, nil
}

// ParseLexRange builds a lex range from textual bounds: "[member" for
// inclusive, "(member" for exclusive, "-" and "+" for the open ends.
func ParseLexRange(min, max string) (out skipindex.LexRange, _ error) {
	var err error
	if out.Min, err = parseLexBound(min); err != nil {
		return out, err
	}
	out.Max, err = parseLexBound(max)
	return out, err
}

func parseLexBound(s string) (out skipindex.LexBound, _ error) {
	switch {
	case s == "-":
		return skipindex.LexBoundMin(), nil
	case s == "+":
		return skipindex.LexBoundMax(), nil
	case len(s) > 0 && s[0] == '[':
		return skipindex.LexBoundInclusive(s[1:]), nil
	case len(s) > 0 && s[0] == '(':
		return skipindex.LexBoundExclusive(s[1:]), nil
	default:
		return out, errors.Wrapf(ErrInvalidRange, "lex bound %q", s)
	}
}

// normalizeRankWindow resolves negative indices and clamps the window,
// additionally applying offset/limit from the chosen end. A reverse window
// is indexed from the high end: position 0 is the highest-ranked member.
// Returns the forward index of the first emitted member and how many to
// emit.
func normalizeRankWindow(r RankRange, llen int64, args RangeArgs) (first, count int64, ok bool) {
	start, stop := r.Start, r.Stop
	if start < 0 {
		start += llen
	}
	if stop < 0 {
		stop += llen
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= llen {
		return 0, 0, false
	}
	if stop >= llen {
		stop = llen - 1
	}

	count = stop - start + 1
	if args.Offset > 0 {
		if args.Offset >= count {
			return 0, 0, false
		}
		count -= args.Offset
	}
	if args.Limit > 0 && args.Limit < count {
		count = args.Limit
	}

	if args.Reverse {
		first = llen - 1 - start
		if args.Offset > 0 {
			first -= args.Offset
		}
	} else {
		first = start
		if args.Offset > 0 {
			first += args.Offset
		}
	}
	return first, count, true
}

// RangeByRank returns members by position.
func (me *SortedSet) RangeByRank(r RankRange, args RangeArgs) (out []RangedMember) {
	first, count, ok := normalizeRankWindow(r, int64(me.Len()), args)
	if !ok {
		return nil
	}

	if me.encoding == EncodingCompact {
		pos, exists := me.seq.Index(int(first) * 2)
		for ; count > 0 && exists; count-- {
			out = append(out, args.result(me.compactMemberAt(pos), me.compactScoreAt(pos)))
			if args.Reverse {
				pos, exists = me.compactPrevPair(pos)
			} else {
				pos, exists = me.compactNextPair(pos)
			}
		}
		return out
	}

	node := me.ranking.ByRank(uint64(first) + 1)
	for ; count > 0 && node != nil; count-- {
		out = append(out, args.result(node.Member(), node.Score()))
		if args.Reverse {
			node = node.Prev()
		} else {
			node = node.Next()
		}
	}
	return out
}

// RangeByScore returns members inside the score range, lowest first (or
// highest first when reversed). Each emitted member is re-checked against
// the range: the offset/limit walk does not go through the range-aware
// descent.
func (me *SortedSet) RangeByScore(r skipindex.ScoreRange, args RangeArgs) (out []RangedMember) {
	inEmitRange := func(score float64) bool {
		if args.Reverse {
			return r.AboveMin(score)
		}
		return r.BelowMax(score)
	}

	if me.encoding == EncodingCompact {
		return me.compactRangeQuery(
			args,
			func(pos uint32) bool { // in range from the approach side
				if args.Reverse {
					return r.BelowMax(me.compactScoreAt(pos))
				}
				return r.AboveMin(me.compactScoreAt(pos))
			},
			func(pos uint32) bool { return inEmitRange(me.compactScoreAt(pos)) },
		)
	}

	var node *skipindex.Node
	if args.Reverse {
		node = me.ranking.LastInScoreRange(r)
	} else {
		node = me.ranking.FirstInScoreRange(r)
	}

	step := func() {
		if args.Reverse {
			node = node.Prev()
		} else {
			node = node.Next()
		}
	}
	for offset := args.Offset; offset > 0 && node != nil; offset-- {
		step()
	}
	for limit := args.Limit; node != nil && (args.Limit <= 0 || limit > 0); limit-- {
		if !inEmitRange(node.Score()) {
			break
		}
		out = append(out, args.result(node.Member(), node.Score()))
		step()
	}
	return out
}

// RangeByLex returns members inside the lexicographic range. Only
// meaningful while every member holds the same score.
func (me *SortedSet) RangeByLex(r skipindex.LexRange, args RangeArgs) (out []RangedMember) {
	inEmitRange := func(member string) bool {
		if args.Reverse {
			return r.AboveMin(member)
		}
		return r.BelowMax(member)
	}

	if me.encoding == EncodingCompact {
		return me.compactRangeQuery(
			args,
			func(pos uint32) bool {
				if args.Reverse {
					return r.BelowMax(me.compactMemberAt(pos))
				}
				return r.AboveMin(me.compactMemberAt(pos))
			},
			func(pos uint32) bool { return inEmitRange(me.compactMemberAt(pos)) },
		)
	}

	var node *skipindex.Node
	if args.Reverse {
		node = me.ranking.LastInLexRange(r)
	} else {
		node = me.ranking.FirstInLexRange(r)
	}

	step := func() {
		if args.Reverse {
			node = node.Prev()
		} else {
			node = node.Next()
		}
	}
	for offset := args.Offset; offset > 0 && node != nil; offset-- {
		step()
	}
	for limit := args.Limit; node != nil && (args.Limit <= 0 || limit > 0); limit-- {
		if !inEmitRange(node.Member()) {
			break
		}
		out = append(out, args.result(node.Member(), node.Score()))
		step()
	}
	return out
}

// compactRangeQuery walks pairs from the approach end until entered
// reports the range was reached, then emits entries while stillIn holds.
func (me *SortedSet) compactRangeQuery(
	args RangeArgs, entered func(uint32) bool, stillIn func(uint32) bool,
) (out []RangedMember) {
	var pos uint32
	var exists bool
	if args.Reverse {
		pos, exists = me.compactLastPair()
	} else {
		pos, exists = me.seq.Index(0)
	}

	step := func() {
		if args.Reverse {
			pos, exists = me.compactPrevPair(pos)
		} else {
			pos, exists = me.compactNextPair(pos)
		}
	}

	for exists && !entered(pos) {
		step()
	}
	for offset := args.Offset; offset > 0 && exists; offset-- {
		step()
	}
	for limit := args.Limit; exists && (args.Limit <= 0 || limit > 0); limit-- {
		if !stillIn(pos) {
			break
		}
		out = append(out, args.result(me.compactMemberAt(pos), me.compactScoreAt(pos)))
		step()
	}
	return out
}

// Count returns how many members fall inside the score range.
func (me *SortedSet) Count(r skipindex.ScoreRange) int {
	if me.encoding == EncodingCompact {
		return me.compactCount(func(pos uint32) bool {
			return r.Contains(me.compactScoreAt(pos))
		}, func(pos uint32) bool {
			return !r.BelowMax(me.compactScoreAt(pos))
		})
	}
	return int(me.ranking.CountInScoreRange(r))
}

// CountLex returns how many members fall inside the lex range.
func (me *SortedSet) CountLex(r skipindex.LexRange) int {
	if me.encoding == EncodingCompact {
		return me.compactCount(func(pos uint32) bool {
			return r.Contains(me.compactMemberAt(pos))
		}, func(pos uint32) bool {
			return !r.BelowMax(me.compactMemberAt(pos))
		})
	}
	return int(me.ranking.CountInLexRange(r))
}

func (me *SortedSet) compactCount(contains, past func(uint32) bool) (count int) {
	pos, exists := me.seq.Index(0)
	for exists {
		if contains(pos) {
			count++
		} else if past(pos) {
			break
		}
		pos, exists = me.compactNextPair(pos)
	}
	return count
}

// RemoveRangeByRank deletes members by position window and returns how many
// were removed.
func (me *SortedSet) RemoveRangeByRank(r RankRange) int {
	first, count, ok := normalizeRankWindow(r, int64(me.Len()), RangeArgs{})
	if !ok {
		return 0
	}

	var removed int
	if me.encoding == EncodingCompact {
		removed = me.seq.DeleteRange(int(first)*2, int(count)*2) / 2
	} else {
		removed = me.ranking.DeleteRankRange(
			uint64(first)+1, uint64(first+count),
			func(_ float64, member string) {
				me.index.Delete(member)
			},
		)
		me.shrinkIfSparse()
	}
	if removed > 0 {
		me.notify()
	}
	return removed
}

// RemoveRangeByScore deletes members inside the score range.
func (me *SortedSet) RemoveRangeByScore(r skipindex.ScoreRange) int {
	var removed int
	if me.encoding == EncodingCompact {
		removed = me.compactDeleteWhile(func(pos uint32) bool {
			return r.Contains(me.compactScoreAt(pos))
		}, func(pos uint32) bool {
			return !r.BelowMax(me.compactScoreAt(pos))
		})
	} else {
		removed = me.ranking.DeleteScoreRange(r, func(_ float64, member string) {
			me.index.Delete(member)
		})
		me.shrinkIfSparse()
	}
	if removed > 0 {
		me.notify()
	}
	return removed
}

// RemoveRangeByLex deletes members inside the lex range.
func (me *SortedSet) RemoveRangeByLex(r skipindex.LexRange) int {
	var removed int
	if me.encoding == EncodingCompact {
		removed = me.compactDeleteWhile(func(pos uint32) bool {
			return r.Contains(me.compactMemberAt(pos))
		}, func(pos uint32) bool {
			return !r.BelowMax(me.compactMemberAt(pos))
		})
	} else {
		removed = me.ranking.DeleteLexRange(r, func(_ float64, member string) {
			me.index.Delete(member)
		})
		me.shrinkIfSparse()
	}
	if removed > 0 {
		me.notify()
	}
	return removed
}

// compactDeleteWhile removes consecutive in-range pairs. Deleting a pair
// shifts the following member entry onto the same offset.
func (me *SortedSet) compactDeleteWhile(contains, past func(uint32) bool) (removed int) {
	pos, exists := me.seq.Index(0)
	for exists {
		if contains(pos) {
			me.compactDeleteAt(pos)
			removed++
			if me.seq.End(pos) {
				break
			}
			continue
		}
		if past(pos) {
			break
		}
		pos, exists = me.compactNextPair(pos)
	}
	return removed
}
