package sortedset

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordkv/ordkv/util"
	testing_util "github.com/ordkv/ordkv/util/testing"
)

// eachEncoding runs fn once against a set pinned to the compact
// representation and once against a freshly converted expanded one, so every
// operation is exercised through both.
func eachEncoding(t *testing.T, fn func(t *testing.T, newSet func() *SortedSet)) {
	t.Helper()

	t.Run("compact", func(t *testing.T) {
		t.Parallel()
		fn(t, func() *SortedSet {
			return New(Args{
				CompactMaxEntries:    util.Some(1 << 20),
				CompactMaxValueBytes: util.Some(1 << 20),
			})
		})
	})
	t.Run("expanded", func(t *testing.T) {
		t.Parallel()
		fn(t, func() *SortedSet {
			set := New(Args{RandomSeed: util.Some[int64](42)})
			require.NoError(t, set.Convert(EncodingExpanded))
			return set
		})
	})
}

func members(results []RangedMember) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Member
	}
	return out
}

func TestAdd_TieBreakByMember(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		added, updated, err := set.Add(
			MemberScore{Member: "c", Score: 1},
			MemberScore{Member: "a", Score: 1},
			MemberScore{Member: "b", Score: 1},
		)
		require.NoError(t, err)
		assert.Equal(t, 3, added)
		assert.Zero(t, updated)
		assert.Equal(t, 3, set.Len())

		got := set.RangeByRank(RankRange{Start: 0, Stop: -1}, RangeArgs{})
		assert.Equal(t, []string{"a", "b", "c"}, members(got))
	})
}

func TestAdd_UpdateMovesMember(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		_, _, err := set.Add(
			MemberScore{Member: "a", Score: 1},
			MemberScore{Member: "b", Score: 2},
		)
		require.NoError(t, err)

		added, updated, err := set.Add(MemberScore{Member: "a", Score: 3})
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Equal(t, 1, updated)

		got := set.RangeByRank(RankRange{Start: 0, Stop: -1}, RangeArgs{})
		assert.Equal(t, []string{"b", "a"}, members(got))

		// re-adding with the same score is a no-op
		added, updated, err = set.Add(MemberScore{Member: "a", Score: 3})
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Zero(t, updated)
	})
}

func TestAdd_NaNFailsWholeBatch(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		added, updated, err := set.Add(
			MemberScore{Member: "ok", Score: 1},
			MemberScore{Member: "bad", Score: math.NaN()},
		)
		assert.ErrorIs(t, err, ErrNotANumber)
		assert.Zero(t, added)
		assert.Zero(t, updated)
		assert.Zero(t, set.Len())
	})
}

func TestIncrement(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		_, _, err := set.Add(
			MemberScore{Member: "a", Score: 1},
			MemberScore{Member: "b", Score: 2},
			MemberScore{Member: "c", Score: 3},
		)
		require.NoError(t, err)

		score, err := set.Increment("a", 5)
		require.NoError(t, err)
		assert.Equal(t, 6.0, score)
		assert.Equal(t, util.Some(6.0), set.Score("a"))
		assert.Equal(t, util.Some(uint64(2)), set.Rank("a", false))

		// missing member starts from zero
		score, err = set.Increment("d", 2.5)
		require.NoError(t, err)
		assert.Equal(t, 2.5, score)
	})
}

func TestIncrement_NaNResultRetainsPriorScore(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		score, err := set.Increment("a", math.Inf(1))
		require.NoError(t, err)
		assert.True(t, math.IsInf(score, 1))

		_, err = set.Increment("a", math.Inf(-1))
		assert.ErrorIs(t, err, ErrNotANumber)

		got, exists := set.Score("a").Unpack()
		require.True(t, exists)
		assert.True(t, math.IsInf(got, 1), "prior score must be retained")

		_, err = set.Increment("a", math.NaN())
		assert.ErrorIs(t, err, ErrNotANumber)
	})
}

func TestRemove(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		_, _, err := set.Add(
			MemberScore{Member: "a", Score: 1},
			MemberScore{Member: "b", Score: 2},
		)
		require.NoError(t, err)

		removed, emptied := set.Remove("a", "missing")
		assert.Equal(t, 1, removed)
		assert.False(t, emptied)
		assert.False(t, set.Score("a").Exists())

		removed, emptied = set.Remove("b")
		assert.Equal(t, 1, removed)
		assert.True(t, emptied)
		assert.Zero(t, set.Len())

		removed, emptied = set.Remove("b")
		assert.Zero(t, removed)
		assert.False(t, emptied)
	})
}

func TestRank_BothDirections(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		for i, member := range []string{"a", "b", "c", "d"} {
			_, _, err := set.Add(MemberScore{Member: member, Score: float64(i)})
			require.NoError(t, err)
		}

		assert.Equal(t, util.Some(uint64(0)), set.Rank("a", false))
		assert.Equal(t, util.Some(uint64(3)), set.Rank("d", false))
		assert.Equal(t, util.Some(uint64(3)), set.Rank("a", true))
		assert.Equal(t, util.Some(uint64(0)), set.Rank("d", true))
		assert.False(t, set.Rank("zz", false).Exists())
	})
}

func TestScore_MissingMember(t *testing.T) {
	eachEncoding(t, func(t *testing.T, newSet func() *SortedSet) {
		set := newSet()
		assert.False(t, set.Score("ghost").Exists())
	})
}

func TestConvert_EntryCountThreshold(t *testing.T) {
	t.Parallel()

	set := New(Args{})
	for i := 0; i < 128; i++ {
		_, _, err := set.Add(MemberScore{Member: fmt.Sprintf("m%03d", i), Score: float64(i)})
		require.NoError(t, err)
	}
	assert.Equal(t, EncodingCompact, set.Encoding())

	_, _, err := set.Add(MemberScore{Member: "m128", Score: 128})
	require.NoError(t, err)
	assert.Equal(t, EncodingExpanded, set.Encoding())

	for i := 129; i < 200; i++ {
		_, _, err := set.Add(MemberScore{Member: fmt.Sprintf("m%03d", i), Score: float64(i)})
		require.NoError(t, err)
	}
	assert.Equal(t, EncodingExpanded, set.Encoding())
	assert.Equal(t, 200, set.Len())

	// conversion never reverses automatically, even after mass removal
	for i := 1; i < 200; i++ {
		set.Remove(fmt.Sprintf("m%03d", i))
	}
	assert.Equal(t, EncodingExpanded, set.Encoding())
	assert.Equal(t, 1, set.Len())
}

func TestConvert_LongMemberThreshold(t *testing.T) {
	t.Parallel()

	set := New(Args{})
	_, _, err := set.Add(MemberScore{Member: strings.Repeat("x", 64), Score: 1})
	require.NoError(t, err)
	assert.Equal(t, EncodingCompact, set.Encoding())

	_, _, err = set.Add(MemberScore{Member: strings.Repeat("y", 65), Score: 2})
	require.NoError(t, err)
	assert.Equal(t, EncodingExpanded, set.Encoding())
	assert.Equal(t, 2, set.Len())
}

func TestConvert_Explicit(t *testing.T) {
	t.Parallel()

	set := New(Args{})
	_, _, err := set.Add(
		MemberScore{Member: "a", Score: 1.5},
		MemberScore{Member: "b", Score: math.Inf(1)},
		MemberScore{Member: "c", Score: -3},
	)
	require.NoError(t, err)

	require.NoError(t, set.Convert(EncodingExpanded))
	assert.Equal(t, EncodingExpanded, set.Encoding())
	require.NoError(t, set.Convert(EncodingExpanded)) // idempotent

	require.NoError(t, set.Convert(EncodingCompact))
	assert.Equal(t, EncodingCompact, set.Encoding())

	assert.Equal(t, util.Some(1.5), set.Score("a"))
	score, _ := set.Score("b").Unpack()
	assert.True(t, math.IsInf(score, 1))
	assert.Equal(t, util.Some(-3.0), set.Score("c"))

	assert.Error(t, set.Convert(Encoding(99)))
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	changes := 0
	set := New(Args{OnChange: func() { changes++ }})

	_, _, err := set.Add(MemberScore{Member: "a", Score: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	// no-op writes do not notify
	_, _, err = set.Add(MemberScore{Member: "a", Score: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, changes)
	set.Remove("missing")
	assert.Equal(t, 1, changes)

	set.Remove("a")
	assert.Equal(t, 2, changes)
}

// Both representations must be observationally identical under the same
// operation sequence.
func TestRepresentationTransparency(t *testing.T) {
	t.Parallel()

	rng := testing_util.NewRand(77)
	pinned := New(Args{
		CompactMaxEntries:    util.Some(1 << 20),
		CompactMaxValueBytes: util.Some(1 << 20),
	})
	forced := New(Args{RandomSeed: util.Some[int64](7)})
	require.NoError(t, forced.Convert(EncodingExpanded))

	names := testing_util.Members(rng, 120)
	for step := 0; step < 1500; step++ {
		member := names[rng.Intn(len(names))]
		switch rng.Intn(5) {
		case 0:
			r1, e1 := pinned.Remove(member)
			r2, e2 := forced.Remove(member)
			require.Equal(t, r1, r2)
			require.Equal(t, e1, e2)
		case 1:
			delta := float64(rng.Intn(21) - 10)
			s1, err1 := pinned.Increment(member, delta)
			s2, err2 := forced.Increment(member, delta)
			require.NoError(t, err1)
			require.NoError(t, err2)
			require.Equal(t, s1, s2)
		default:
			score := float64(rng.Intn(40))
			a1, u1, err := pinned.Add(MemberScore{Member: member, Score: score})
			require.NoError(t, err)
			a2, u2, err := forced.Add(MemberScore{Member: member, Score: score})
			require.NoError(t, err)
			require.Equal(t, a1, a2)
			require.Equal(t, u1, u2)
		}

		require.Equal(t, pinned.Len(), forced.Len())
	}

	require.Equal(t, pinned.Len(), forced.Len())
	all1 := pinned.RangeByRank(RankRange{Start: 0, Stop: -1}, RangeArgs{WithScores: true})
	all2 := forced.RangeByRank(RankRange{Start: 0, Stop: -1}, RangeArgs{WithScores: true})
	require.Equal(t, all1, all2)

	for _, member := range names {
		require.Equal(t, pinned.Score(member), forced.Score(member), "member %q", member)
		require.Equal(t, pinned.Rank(member, false), forced.Rank(member, false))
		require.Equal(t, pinned.Rank(member, true), forced.Rank(member, true))
	}
}
