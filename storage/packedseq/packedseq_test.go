package packedseq

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testing_util "github.com/ordkv/ordkv/util/testing"
)

// checkInvariants walks the whole buffer verifying that every entry's stored
// previous-length matches its predecessor's actual size and that the header
// fields agree with the layout.
func checkInvariants(t *testing.T, seq *PackedSeq) {
	t.Helper()

	require.Equal(t, uint32(len(seq.buf)), seq.SizeBytes())
	require.Equal(t, byte(endByte), seq.buf[len(seq.buf)-1])

	var prevPos uint32
	var prevSize uint32
	pos := uint32(headerSize)
	count := 0
	for !seq.End(pos) {
		ent := seq.entryAt(pos)
		if count == 0 {
			require.Zero(t, ent.prevLen, "first entry must store previous length 0")
		} else {
			require.Equal(t, prevSize, ent.prevLen,
				"entry at %d disagrees with predecessor at %d", pos, prevPos)
		}
		prevPos, prevSize = pos, ent.totalSize()
		pos += ent.totalSize()
		count++
	}

	require.Equal(t, pos, seq.endPos())
	require.Equal(t, count, seq.NumEntries())
	if count == 0 {
		require.Equal(t, uint32(headerSize), seq.tailOffset())
	} else {
		require.Equal(t, prevPos, seq.tailOffset())
	}
}

func TestNew_Empty(t *testing.T) {
	t.Parallel()

	seq := New()
	assert.Equal(t, uint32(11), seq.SizeBytes())
	assert.Equal(t, 0, seq.NumEntries())
	assert.True(t, seq.End(seq.HeadPos()))

	_, exists := seq.Index(0)
	assert.False(t, exists)
	_, exists = seq.Index(-1)
	assert.False(t, exists)

	checkInvariants(t, seq)
}

func TestPush_RoundTripStringClasses(t *testing.T) {
	t.Parallel()

	rng := testing_util.NewRand(7)
	lengths := []int{0, 1, 63, 64, 16383, 16384, 70000}

	seq := New()
	var want [][]byte
	for _, length := range lengths {
		payload := testing_util.Bytes(rng, length)
		// avoid accidental integer renderings for the tiny payloads
		if length > 0 {
			payload[0] = 'x'
		}
		seq.Push(payload, true)
		want = append(want, payload)
	}
	checkInvariants(t, seq)

	for i, payload := range want {
		pos, exists := seq.Index(i)
		require.True(t, exists, "index %d", i)
		value, ok := seq.Get(pos)
		require.True(t, ok)
		assert.False(t, value.IsInt)
		assert.True(t, bytes.Equal(payload, value.Bytes), "length %d", len(payload))
	}
}

func TestPush_RoundTripIntegerClasses(t *testing.T) {
	t.Parallel()

	values := []int64{
		0, 1, 12, // immediates
		13, 127, -1, -128, // i8
		128, 32767, -32768, // i16
		32768, 8388607, -8388608, // i24
		8388608, 2147483647, -2147483648, // i32
		2147483648, 9223372036854775807, -9223372036854775808, // i64
	}

	seq := New()
	for _, v := range values {
		seq.Push([]byte(strconv.FormatInt(v, 10)), true)
	}
	checkInvariants(t, seq)

	for i, v := range values {
		pos, exists := seq.Index(i)
		require.True(t, exists)
		value, ok := seq.Get(pos)
		require.True(t, ok)
		require.True(t, value.IsInt, "value %d must use an integer class", v)
		assert.Equal(t, v, value.Int)
	}
}

func TestPush_NonCanonicalIntegersStayStrings(t *testing.T) {
	t.Parallel()

	seq := New()
	for _, raw := range []string{"007", "+1", " 1", "1.0", "", "12345678901234567890123456789012345"} {
		seq.Push([]byte(raw), true)
	}
	checkInvariants(t, seq)

	i := 0
	for value := range seq.Entries() {
		assert.False(t, value.IsInt, "entry %d", i)
		i++
	}
	assert.Equal(t, 6, i)
}

func TestEncodingSizes(t *testing.T) {
	t.Parallel()

	seq := New()
	seq.Push([]byte("5"), true)
	// header 10 + entry (prevlen 1 + encoding 1 + payload 0) + terminator 1
	assert.Equal(t, uint32(13), seq.SizeBytes())
	assert.Equal(t, byte(immediateMin+5), seq.buf[headerSize+1])

	seq = New()
	seq.Push([]byte("hello"), true)
	// prevlen 1 + header 1 (str06) + payload 5
	assert.Equal(t, uint32(11+7), seq.SizeBytes())
}

func TestPushHead_And_NegativeIndex(t *testing.T) {
	t.Parallel()

	seq := New()
	seq.Push([]byte("b"), true)
	seq.Push([]byte("a"), false)
	seq.Push([]byte("c"), true)
	checkInvariants(t, seq)

	for i, want := range []string{"a", "b", "c"} {
		pos, exists := seq.Index(i)
		require.True(t, exists)
		value, _ := seq.Get(pos)
		assert.Equal(t, want, value.String())

		pos, exists = seq.Index(i - 3)
		require.True(t, exists)
		value, _ = seq.Get(pos)
		assert.Equal(t, want, value.String(), "negative index %d", i-3)
	}

	_, exists := seq.Index(3)
	assert.False(t, exists)
	_, exists = seq.Index(-4)
	assert.False(t, exists)
}

func TestInsertBefore_Middle(t *testing.T) {
	t.Parallel()

	seq := New()
	seq.Push([]byte("aa"), true)
	seq.Push([]byte("cc"), true)

	pos, exists := seq.Index(1)
	require.True(t, exists)
	seq.InsertBefore(pos, []byte("bb"))
	checkInvariants(t, seq)

	var got []string
	for value := range seq.Entries() {
		got = append(got, value.String())
	}
	assert.Equal(t, []string{"aa", "bb", "cc"}, got)
}

func TestDelete_And_DeleteRange(t *testing.T) {
	t.Parallel()

	seq := New()
	for i := 0; i < 10; i++ {
		seq.Push([]byte(fmt.Sprintf("value-%d", i)), true)
	}

	pos, _ := seq.Index(0)
	seq.Delete(pos)
	checkInvariants(t, seq)
	assert.Equal(t, 9, seq.NumEntries())

	// the same offset now addresses the former second entry
	value, ok := seq.Get(pos)
	require.True(t, ok)
	assert.Equal(t, "value-1", value.String())

	assert.Equal(t, 3, seq.DeleteRange(2, 3))
	checkInvariants(t, seq)
	assert.Equal(t, 6, seq.NumEntries())

	// deleting past the tail removes what remains
	assert.Equal(t, 2, seq.DeleteRange(-2, 5))
	checkInvariants(t, seq)
	assert.Equal(t, 4, seq.NumEntries())
}

func TestNextPrev_Traversal(t *testing.T) {
	t.Parallel()

	seq := New()
	want := []string{"one", "two", "three", "four"}
	for _, s := range want {
		seq.Push([]byte(s), true)
	}

	var forward []string
	pos, exists := seq.Index(0)
	for exists {
		value, _ := seq.Get(pos)
		forward = append(forward, value.String())
		pos, exists = seq.Next(pos)
	}
	assert.Equal(t, want, forward)

	var backward []string
	pos, exists = seq.Index(-1)
	for exists {
		value, _ := seq.Get(pos)
		backward = append(backward, value.String())
		pos, exists = seq.Prev(pos)
	}
	assert.Equal(t, []string{"four", "three", "two", "one"}, backward)
}

func TestFind_WithSkip(t *testing.T) {
	t.Parallel()

	seq := New()
	// alternating member/score layout, as the sorted set stores pairs
	pairs := [][2]string{{"apple", "1"}, {"banana", "2"}, {"3", "3"}, {"cherry", "4"}}
	for _, pair := range pairs {
		seq.Push([]byte(pair[0]), true)
		seq.Push([]byte(pair[1]), true)
	}

	for i, pair := range pairs {
		pos, exists := seq.Find(seq.HeadPos(), []byte(pair[0]), 1)
		require.True(t, exists, "member %q", pair[0])
		wantPos, _ := seq.Index(i * 2)
		assert.Equal(t, wantPos, pos)
	}

	// "2" is a score entry; with skip 1 starting at a member entry it is
	// never compared
	_, exists := seq.Find(seq.HeadPos(), []byte("2"), 1)
	assert.False(t, exists)

	_, exists = seq.Find(seq.HeadPos(), []byte("durian"), 1)
	assert.False(t, exists)
}

func TestCompare_IntegerAndString(t *testing.T) {
	t.Parallel()

	seq := New()
	seq.Push([]byte("1024"), true)
	seq.Push([]byte("text"), true)

	pos, _ := seq.Index(0)
	assert.True(t, seq.Compare(pos, []byte("1024")))
	assert.False(t, seq.Compare(pos, []byte("1025")))
	assert.False(t, seq.Compare(pos, []byte("text")))

	pos, _ = seq.Index(1)
	assert.True(t, seq.Compare(pos, []byte("text")))
	assert.False(t, seq.Compare(pos, []byte("1024")))
}

func TestCascade_GrowsPrevLenWidths(t *testing.T) {
	t.Parallel()

	// entries just under the one-byte prevlen limit so that a large
	// insertion at the head forces every following slot to widen
	seq := New()
	rng := testing_util.NewRand(11)
	for i := 0; i < 6; i++ {
		payload := testing_util.Bytes(rng, 250)
		payload[0] = 'x'
		seq.Push(payload, true)
	}
	checkInvariants(t, seq)

	big := testing_util.Bytes(rng, 300)
	big[0] = 'x'
	seq.Push(big, false)
	checkInvariants(t, seq)
	assert.Equal(t, 7, seq.NumEntries())
}

func TestCascade_FuzzInsertDelete(t *testing.T) {
	t.Parallel()

	rng := testing_util.NewRand(99)
	seq := New()
	live := 0
	for step := 0; step < 400; step++ {
		if live == 0 || rng.Intn(3) > 0 {
			length := rng.Intn(600)
			payload := testing_util.Bytes(rng, length)
			if length > 0 {
				payload[0] = 'x'
			}
			if idx := rng.Intn(live + 1); idx == live {
				seq.Push(payload, true)
			} else {
				pos, exists := seq.Index(idx)
				require.True(t, exists)
				seq.InsertBefore(pos, payload)
			}
			live++
		} else {
			pos, exists := seq.Index(rng.Intn(live))
			require.True(t, exists)
			seq.Delete(pos)
			live--
		}
		checkInvariants(t, seq)
		require.Equal(t, live, seq.NumEntries())
	}
}

func TestFromBytes_AdoptsBuffer(t *testing.T) {
	t.Parallel()

	seq := New()
	seq.Push([]byte("persisted"), true)
	seq.Push([]byte("42"), true)

	adopted := FromBytes(seq.Bytes())
	assert.Equal(t, 2, adopted.NumEntries())
	pos, _ := adopted.Index(1)
	value, _ := adopted.Get(pos)
	assert.True(t, value.IsInt)
	assert.Equal(t, int64(42), value.Int)
}
