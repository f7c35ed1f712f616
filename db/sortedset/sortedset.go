package sortedset

import (
	"errors"
	"math"

	"github.com/ordkv/ordkv/storage/hashindex"
	"github.com/ordkv/ordkv/storage/packedseq"
	"github.com/ordkv/ordkv/storage/skipindex"
	"github.com/ordkv/ordkv/util"
)

var (
	// ErrNotANumber means an increment or aggregate produced NaN; the
	// operation is aborted before any mutation is committed.
	ErrNotANumber = errors.New("resulting score is not a number (nan)")

	// ErrInvalidRange means a score or lex range bound failed to parse.
	ErrInvalidRange = errors.New("invalid range syntax")

	// ErrWrongType is reserved for callers dispatching on collection type;
	// nothing in this package raises it.
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

	errUnknownEncoding = errors.New("unknown target encoding")
)

// Encoding names the active representation of a SortedSet.
type Encoding uint8

const (
	// EncodingCompact packs (member, score) pairs into a single byte
	// buffer; cheap for small collections, linear for everything.
	EncodingCompact Encoding = iota

	// EncodingExpanded pairs a hash index (member -> node) with a skip
	// index ordered by (score, member).
	EncodingExpanded
)

const (
	defaultCompactMaxEntries    = 128
	defaultCompactMaxValueBytes = 64
)

// SortedSet is a collection of unique members, each bound to a float64
// score, ordered by (score, member). Small collections live in a packed
// byte sequence; once the entry count or any single member's encoded
// length crosses the configured limits the set converts to the dual-index
// representation. The automatic conversion is one-way.
type SortedSet struct {
	encoding Encoding

	// compact representation
	seq *packedseq.PackedSeq

	// expanded representation; the hash value for a member is a reference
	// to its skip index node, so a score moved through the skip index is
	// visible through the hash entry with no extra write
	index   *hashindex.HashIndex
	ranking *skipindex.SkipIndex

	compactMaxEntries    int
	compactMaxValueBytes int
	disableResize        bool
	randomSeed           util.Optional[int64]
	onChange             func()
}

type Args struct {
	// CompactMaxEntries caps how many members the compact representation
	// may hold before converting (default 128).
	CompactMaxEntries util.Optional[int]

	// CompactMaxValueBytes caps a single member's encoded length in the
	// compact representation (default 64).
	CompactMaxValueBytes util.Optional[int]

	// DisableResize suppresses proactive hash index growth; forced growth
	// past the 5:1 load safety ratio still happens.
	DisableResize bool

	// RandomSeed fixes the skip index level draws.
	RandomSeed util.Optional[int64]

	// OnChange is invoked after every effective mutation.
	OnChange func()
}

// MemberScore is one (member, score) input pair for Add.
type MemberScore struct {
	Member string
	Score  float64
}

func New(args Args) *SortedSet {
	return &SortedSet{
		encoding:             EncodingCompact,
		seq:                  packedseq.New(),
		compactMaxEntries:    args.CompactMaxEntries.Or(defaultCompactMaxEntries),
		compactMaxValueBytes: args.CompactMaxValueBytes.Or(defaultCompactMaxValueBytes),
		disableResize:        args.DisableResize,
		randomSeed:           args.RandomSeed,
		onChange:             args.OnChange,
	}
}

func (me *SortedSet) Encoding() Encoding {
	return me.encoding
}

func (me *SortedSet) Len() int {
	if me.encoding == EncodingCompact {
		return me.seq.NumEntries() / 2
	}
	return int(me.index.Len())
}

// Add inserts or updates the given pairs, returning how many members were
// newly added and how many had their score changed. A NaN score anywhere in
// the batch fails the whole batch before any mutation is applied.
func (me *SortedSet) Add(pairs ...MemberScore) (added, updated int, _ error) {
	for _, pair := range pairs {
		if math.IsNaN(pair.Score) {
			return 0, 0, ErrNotANumber
		}
	}
	for _, pair := range pairs {
		wasAdded, wasUpdated := me.addOne(pair.Member, pair.Score)
		if wasAdded {
			added++
		}
		if wasUpdated {
			updated++
		}
	}
	if added+updated > 0 {
		me.notify()
	}
	return added, updated, nil
}

// Increment adds delta to the member's score (treating a missing member as
// score 0) and returns the new score. A NaN result aborts with ErrNotANumber
// and the prior score is retained.
func (me *SortedSet) Increment(member string, delta float64) (out float64, _ error) {
	if math.IsNaN(delta) {
		return 0, ErrNotANumber
	}
	score := delta
	if current, exists := me.Score(member).Unpack(); exists {
		score = current + delta
	}
	if math.IsNaN(score) {
		return 0, ErrNotANumber
	}
	me.addOne(member, score)
	me.notify()
	return score, nil
}

// Remove deletes the given members, reporting how many were present and
// whether the collection emptied as a result (the caller owns dropping the
// containing collection).
func (me *SortedSet) Remove(members ...string) (removed int, emptied bool) {
	for _, member := range members {
		if me.removeOne(member) {
			removed++
		}
	}
	if removed > 0 {
		me.notify()
	}
	return removed, removed > 0 && me.Len() == 0
}

// Score returns the member's score, if present.
func (me *SortedSet) Score(member string) util.Optional[float64] {
	if me.encoding == EncodingCompact {
		_, score, exists := me.compactFind(member)
		if !exists {
			return util.None[float64]()
		}
		return util.Some(score)
	}
	entry, exists := me.index.Find(member)
	if !exists {
		return util.None[float64]()
	}
	return util.Some(me.nodeOf(entry).Score())
}

// Rank returns the member's 0-based position in score order, or from the
// high end when reverse is set.
func (me *SortedSet) Rank(member string, reverse bool) util.Optional[uint64] {
	if me.encoding == EncodingCompact {
		return me.compactRank(member, reverse)
	}
	entry, exists := me.index.Find(member)
	if !exists {
		return util.None[uint64]()
	}
	node := me.nodeOf(entry)
	rank := me.ranking.Rank(node.Score(), member)
	if rank == 0 {
		panic("member present in hash index but absent from skip index")
	}
	if reverse {
		return util.Some(me.ranking.Len() - rank)
	}
	return util.Some(rank - 1)
}

// Convert rebuilds the set into the target representation. Growth past the
// compact limits converts automatically; converting back down is only done
// on explicit request.
func (me *SortedSet) Convert(target Encoding) error {
	switch target {
	case me.encoding:
		return nil
	case EncodingExpanded:
		me.convertToExpanded()
		return nil
	case EncodingCompact:
		me.convertToCompact()
		return nil
	default:
		return errUnknownEncoding
	}
}

func (me *SortedSet) addOne(member string, score float64) (added, updated bool) {
	if me.encoding == EncodingCompact {
		pos, current, exists := me.compactFind(member)
		if exists {
			if current == score {
				return false, false
			}
			me.compactDeleteAt(pos)
			me.compactInsert(member, score)
			return false, true
		}
		me.compactInsert(member, score)
		if me.seq.NumEntries()/2 > me.compactMaxEntries ||
			len(member) > me.compactMaxValueBytes {
			me.convertToExpanded()
		}
		return true, false
	}

	entry, exists := me.index.Find(member)
	if exists {
		node := me.nodeOf(entry)
		if node.Score() == score {
			return false, false
		}
		// reinsert under the new score; the hash entry itself survives,
		// only its node reference moves
		me.ranking.Delete(node.Score(), member)
		entry.SetValue(hashindex.RefValue(me.ranking.Insert(score, member)))
		return false, true
	}
	node := me.ranking.Insert(score, member)
	util.AssertNoError(me.index.Insert(member, hashindex.RefValue(node)))
	return true, false
}

func (me *SortedSet) removeOne(member string) bool {
	if me.encoding == EncodingCompact {
		pos, _, exists := me.compactFind(member)
		if !exists {
			return false
		}
		me.compactDeleteAt(pos)
		return true
	}

	entry, exists := me.index.Find(member)
	if !exists {
		return false
	}
	node := me.nodeOf(entry)
	me.index.Delete(member)
	me.ranking.Delete(node.Score(), member)
	me.shrinkIfSparse()
	return true
}

func (me *SortedSet) nodeOf(entry *hashindex.Entry) *skipindex.Node {
	return entry.Value().Ref().(*skipindex.Node)
}

func (me *SortedSet) notify() {
	if me.onChange != nil {
		me.onChange()
	}
}

// shrinkIfSparse resizes the hash index down once fewer than a tenth of its
// buckets are in use.
func (me *SortedSet) shrinkIfSparse() {
	slots := me.index.Slots()
	if slots > 4 && me.index.Len()*100/slots < 10 {
		me.index.ResizeToFit()
	}
}

func (me *SortedSet) convertToExpanded() {
	if me.encoding == EncodingExpanded {
		return
	}
	me.index = hashindex.New(hashindex.Args{DisableResize: me.disableResize})
	me.ranking = skipindex.New(skipindex.Args{RandomSeed: me.randomSeed})

	pos, exists := me.seq.Index(0)
	for exists {
		member := me.compactMemberAt(pos)
		node := me.ranking.Insert(me.compactScoreAt(pos), member)
		util.AssertNoError(me.index.Insert(member, hashindex.RefValue(node)))
		pos, exists = me.compactNextPair(pos)
	}

	me.seq = nil
	me.encoding = EncodingExpanded
}

func (me *SortedSet) convertToCompact() {
	if me.encoding == EncodingCompact {
		return
	}
	seq := packedseq.New()
	for node := me.ranking.First(); node != nil; node = node.Next() {
		seq.Push([]byte(node.Member()), true)
		seq.Push([]byte(formatScore(node.Score())), true)
	}

	me.seq = seq
	me.index = nil
	me.ranking = nil
	me.encoding = EncodingCompact
}
