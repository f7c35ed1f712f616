package sortedset

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/ordkv/ordkv/storage/hashindex"
	"github.com/ordkv/ordkv/util"
)

// Aggregate picks how scores combine when a member occurs in several
// sources.
type Aggregate uint8

const (
	AggregateSum Aggregate = iota
	AggregateMin
	AggregateMax
)

// CombineArgs describes a union or intersection over several sets. Weights
// multiply each source's scores and default to 1; sources are processed
// smallest-first.
type CombineArgs struct {
	Sources   []*SortedSet
	Weights   []float64
	Aggregate Aggregate
}

type weightedSource struct {
	set    *SortedSet
	weight float64
}

func (me CombineArgs) sources() (out []weightedSource, _ error) {
	if len(me.Sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	if me.Weights != nil && len(me.Weights) != len(me.Sources) {
		return nil, errors.Errorf("got %d weights for %d sources", len(me.Weights), len(me.Sources))
	}
	if me.Aggregate > AggregateMax {
		return nil, errors.Errorf("unknown aggregate %d", me.Aggregate)
	}

	for i, src := range me.Sources {
		weight := 1.0
		if me.Weights != nil {
			weight = me.Weights[i]
		}
		out = append(out, weightedSource{set: src, weight: weight})
	}
	// smallest first: intersections iterate only the first source and
	// probe the rest, unions touch fewer fresh members per pass
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].set.Len() < out[j].set.Len()
	})
	return out, nil
}

// combine folds val into the running score for a member.
func (me CombineArgs) combine(target *float64, val float64) {
	switch me.Aggregate {
	case AggregateSum:
		*target += val
		// adding opposite infinities has no meaningful sum; by convention
		// it lands on zero
		if math.IsNaN(*target) {
			*target = 0
		}
	case AggregateMin:
		if math.IsNaN(*target) || (!math.IsNaN(val) && val < *target) {
			*target = val
		}
	case AggregateMax:
		if math.IsNaN(*target) || (!math.IsNaN(val) && val > *target) {
			*target = val
		}
	}
}

// weighted applies a source's weight to a raw score; a NaN product (zero
// weight on an infinite score) normalizes to zero.
func weighted(score, weight float64) float64 {
	out := score * weight
	if math.IsNaN(out) {
		return 0
	}
	return out
}

// Union builds a new set holding every member of every source with
// aggregated, weighted scores.
func Union(args CombineArgs) (out *SortedSet, _ error) {
	sources, err := args.sources()
	if err != nil {
		return nil, err
	}

	// accumulate member -> score before materializing, so each member is
	// inserted into the result's ordered index exactly once
	accumulator := hashindex.New(hashindex.Args{})
	for _, src := range sources {
		src.set.each(func(member string, score float64) bool {
			val := weighted(score, src.weight)
			if entry, exists := accumulator.Find(member); exists {
				current := entry.Value().Float()
				args.combine(&current, val)
				entry.SetValue(hashindex.FloatValue(current))
			} else {
				util.AssertNoError(accumulator.Insert(member, hashindex.FloatValue(val)))
			}
			return true
		})
	}
	accumulator.ResizeToFit()

	return materialize(accumulator)
}

// Intersect builds a new set holding members present in every source, with
// aggregated, weighted scores. Iteration runs over the smallest source and
// a member is dropped on the first source that lacks it.
func Intersect(args CombineArgs) (out *SortedSet, _ error) {
	sources, err := args.sources()
	if err != nil {
		return nil, err
	}

	accumulator := hashindex.New(hashindex.Args{})
	smallest := sources[0]
	if smallest.set.Len() > 0 {
		smallest.set.each(func(member string, score float64) bool {
			total := weighted(score, smallest.weight)
			for _, other := range sources[1:] {
				otherScore, exists := other.set.Score(member).Unpack()
				if !exists {
					return true
				}
				args.combine(&total, weighted(otherScore, other.weight))
			}
			util.AssertNoError(accumulator.Insert(member, hashindex.FloatValue(total)))
			return true
		})
	}

	return materialize(accumulator)
}

// materialize drains the accumulator into a fresh set, compacted when it
// fits the compact limits.
func materialize(accumulator *hashindex.HashIndex) (out *SortedSet, _ error) {
	out = New(Args{})
	out.convertToExpanded()

	maxMemberLen := 0
	it := accumulator.Iterator(false)
	for entry, exists := it.Next(); exists; entry, exists = it.Next() {
		out.addOne(entry.Key(), entry.Value().Float())
		if len(entry.Key()) > maxMemberLen {
			maxMemberLen = len(entry.Key())
		}
	}
	it.Release()

	if out.Len() <= out.compactMaxEntries && maxMemberLen <= out.compactMaxValueBytes {
		out.convertToCompact()
	}
	return out, nil
}

// each visits every (member, score) pair in score order regardless of the
// active representation; fn returns false to stop early.
func (me *SortedSet) each(fn func(member string, score float64) bool) {
	if me.encoding == EncodingCompact {
		pos, exists := me.seq.Index(0)
		for exists {
			if !fn(me.compactMemberAt(pos), me.compactScoreAt(pos)) {
				return
			}
			pos, exists = me.compactNextPair(pos)
		}
		return
	}
	for node := me.ranking.First(); node != nil; node = node.Next() {
		if !fn(node.Member(), node.Score()) {
			return
		}
	}
}
