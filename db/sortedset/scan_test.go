package sortedset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_CompactEmitsEverythingAtOnce(t *testing.T) {
	t.Parallel()

	set := setOf(t,
		MemberScore{Member: "a", Score: 1},
		MemberScore{Member: "b", Score: 2},
		MemberScore{Member: "c", Score: 3},
	)
	require.Equal(t, EncodingCompact, set.Encoding())

	got := map[string]float64{}
	cursor := set.Scan(0, func(member string, score float64) {
		got[member] = score
	})
	assert.Zero(t, cursor)
	assert.Equal(t, map[string]float64{"a": 1, "b": 2, "c": 3}, got)
}

func TestScan_ExpandedCoversAllMembers(t *testing.T) {
	t.Parallel()

	set := New(Args{})
	const n = 500
	for i := 0; i < n; i++ {
		_, _, err := set.Add(MemberScore{Member: fmt.Sprintf("m%03d", i), Score: float64(i)})
		require.NoError(t, err)
	}
	require.Equal(t, EncodingExpanded, set.Encoding())

	got := map[string]float64{}
	cursor := uint64(0)
	steps := 0
	for {
		cursor = set.Scan(cursor, func(member string, score float64) {
			got[member] = score
		})
		steps++
		if cursor == 0 {
			break
		}
		require.Less(t, steps, 1<<16, "scan failed to terminate")
	}

	require.Len(t, got, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, float64(i), got[fmt.Sprintf("m%03d", i)])
	}
}

func TestScan_SurvivesConcurrentMutation(t *testing.T) {
	t.Parallel()

	set := New(Args{})
	const n = 200
	for i := 0; i < n; i++ {
		_, _, err := set.Add(MemberScore{Member: fmt.Sprintf("keep%03d", i), Score: float64(i)})
		require.NoError(t, err)
	}
	require.Equal(t, EncodingExpanded, set.Encoding())

	seen := map[string]bool{}
	cursor := uint64(0)
	steps := 0
	for {
		cursor = set.Scan(cursor, func(member string, _ float64) {
			seen[member] = true
		})
		// mutate mid-scan; members present for the whole scan must still
		// all be visited
		if steps == 2 {
			for i := 0; i < 400; i++ {
				_, _, err := set.Add(MemberScore{Member: fmt.Sprintf("extra%03d", i), Score: 0})
				require.NoError(t, err)
			}
		}
		steps++
		if cursor == 0 {
			break
		}
		require.Less(t, steps, 1<<16, "scan failed to terminate")
	}

	for i := 0; i < n; i++ {
		assert.True(t, seen[fmt.Sprintf("keep%03d", i)], "keep%03d missing", i)
	}
}
