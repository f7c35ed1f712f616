package hashindex

import (
	"errors"
	"math/rand"
	"time"

	"github.com/ordkv/ordkv/util"
)

var (
	ErrKeyExists = errors.New("key already exists")

	// ErrKeyIndexCorruption marks a broken structural invariant: a rehash
	// cursor past the table bounds, or a mutation during unsafe iteration.
	// It is raised via panic and is not recoverable.
	ErrKeyIndexCorruption = errors.New("key index corruption detected")
)

const (
	initialSize      = 4
	forceResizeRatio = 5

	// each rehash step tolerates this many empty buckets per requested
	// bucket move before yielding back to the caller
	emptyVisitsPerStep = 10
)

type Entry struct {
	key   string
	value Value
	next  *Entry
}

func (me *Entry) Key() string {
	return me.key
}

func (me *Entry) Value() Value {
	return me.value
}

func (me *Entry) SetValue(v Value) {
	me.value = v
}

type table struct {
	buckets []*Entry
	used    uint64

	// allocation sequence number; stands in for pointer identity in the
	// iterator fingerprint
	id uint64
}

func (me *table) size() uint64 {
	return uint64(len(me.buckets))
}

func (me *table) mask() uint64 {
	if len(me.buckets) == 0 {
		return 0
	}
	return uint64(len(me.buckets)) - 1
}

// HashIndex is a chained hash table that grows by incremental rehashing:
// a resize allocates the next generation without moving anything, and every
// subsequent operation migrates one bucket chain until the old generation
// drains. Lookups probe both generations while a rehash is in flight.
type HashIndex struct {
	tables    [2]table
	rehashIdx int64 // bucket cursor into tables[0]; -1 when idle

	// live safe iterators; rehash steps are forbidden while nonzero
	iterators uint64

	seed          uint32
	resizeEnabled bool
	allocSeq      uint64
}

type Args struct {
	// DisableResize suppresses proactive growth; the index still expands
	// once the load factor passes the forced 5:1 safety ratio.
	DisableResize bool
	HashSeed      util.Optional[uint32]
}

func New(args Args) *HashIndex {
	return &HashIndex{
		rehashIdx:     -1,
		seed:          args.HashSeed.Or(rand.Uint32()),
		resizeEnabled: !args.DisableResize,
	}
}

func (me *HashIndex) Len() uint64 {
	return me.tables[0].used + me.tables[1].used
}

// Slots returns the total bucket count across both generations.
func (me *HashIndex) Slots() uint64 {
	return me.tables[0].size() + me.tables[1].size()
}

func (me *HashIndex) IsRehashing() bool {
	return me.rehashIdx != -1
}

func (me *HashIndex) hash(key string) uint64 {
	return uint64(murmur2(key, me.seed))
}

// Insert adds a key that must not already be present.
func (me *HashIndex) Insert(key string, value Value) error {
	entry, _ := me.insertRaw(key)
	if entry == nil {
		return ErrKeyExists
	}
	entry.value = value
	return nil
}

// Upsert inserts the key or replaces its value, reporting whether a new
// entry was created.
func (me *HashIndex) Upsert(key string, value Value) (inserted bool) {
	entry, existing := me.insertRaw(key)
	if entry == nil {
		existing.value = value
		return false
	}
	entry.value = value
	return true
}

// insertRaw allocates the bucket slot for key, returning (nil, existing)
// when the key is already present. New entries always land in the newer
// generation during a rehash.
func (me *HashIndex) insertRaw(key string) (entry, existing *Entry) {
	if me.IsRehashing() {
		me.rehashStep()
	}
	me.expandIfNeeded()

	h := me.hash(key)
	lastTable := 0
	if me.IsRehashing() {
		lastTable = 1
	}
	for t := 0; t <= lastTable; t++ {
		idx := h & me.tables[t].mask()
		for cur := me.tables[t].buckets[idx]; cur != nil; cur = cur.next {
			if cur.key == key {
				return nil, cur
			}
		}
	}

	target := &me.tables[lastTable]
	idx := h & target.mask()
	entry = &Entry{key: key, next: target.buckets[idx]}
	target.buckets[idx] = entry
	target.used++
	return entry, nil
}

func (me *HashIndex) Find(key string) (out *Entry, exists bool) {
	if me.Len() == 0 {
		return nil, false
	}
	if me.IsRehashing() {
		me.rehashStep()
	}
	h := me.hash(key)
	for t := 0; t < 2; t++ {
		if me.tables[t].size() == 0 {
			continue
		}
		idx := h & me.tables[t].mask()
		for cur := me.tables[t].buckets[idx]; cur != nil; cur = cur.next {
			if cur.key == key {
				return cur, true
			}
		}
		if !me.IsRehashing() {
			break
		}
	}
	return nil, false
}

func (me *HashIndex) Delete(key string) bool {
	if me.Len() == 0 {
		return false
	}
	if me.IsRehashing() {
		me.rehashStep()
	}
	h := me.hash(key)
	for t := 0; t < 2; t++ {
		if me.tables[t].size() == 0 {
			continue
		}
		idx := h & me.tables[t].mask()
		var prev *Entry
		for cur := me.tables[t].buckets[idx]; cur != nil; cur = cur.next {
			if cur.key == key {
				if prev != nil {
					prev.next = cur.next
				} else {
					me.tables[t].buckets[idx] = cur.next
				}
				me.tables[t].used--
				return true
			}
			prev = cur
		}
		if !me.IsRehashing() {
			break
		}
	}
	return false
}

// ResizeToFit shrinks (or grows) the table to the smallest power of two
// holding all entries. It is a no-op while a rehash is in flight or when
// resizing is disabled.
func (me *HashIndex) ResizeToFit() bool {
	if !me.resizeEnabled || me.IsRehashing() {
		return false
	}
	minimal := me.tables[0].used
	if minimal < initialSize {
		minimal = initialSize
	}
	return me.expand(minimal)
}

// expand installs a new generation of at least size buckets and arms the
// rehash cursor. No data moves until subsequent rehash steps.
func (me *HashIndex) expand(size uint64) bool {
	realSize := nextPower(size)
	if me.IsRehashing() || me.tables[0].used > size || realSize == me.tables[0].size() {
		return false
	}

	me.allocSeq++
	fresh := table{
		buckets: make([]*Entry, realSize),
		id:      me.allocSeq,
	}

	if me.tables[0].buckets == nil {
		// first allocation, nothing to migrate
		me.tables[0] = fresh
		return true
	}
	me.tables[1] = fresh
	me.rehashIdx = 0
	return true
}

func (me *HashIndex) expandIfNeeded() {
	if me.IsRehashing() {
		return
	}
	if me.tables[0].size() == 0 {
		me.expand(initialSize)
		return
	}
	if me.tables[0].used >= me.tables[0].size() &&
		(me.resizeEnabled || me.tables[0].used/me.tables[0].size() > forceResizeRatio) {
		me.expand(me.tables[0].used * 2)
	}
}

// rehashStep migrates a single bucket chain, unless a live safe iterator
// pins the layout.
func (me *HashIndex) rehashStep() {
	if me.iterators == 0 {
		me.Rehash(1)
	}
}

// Rehash migrates up to steps bucket chains from the old generation to the
// new one, returning true while more remain. A bounded number of empty
// buckets may be skipped per step so a sparse table cannot stall the caller.
func (me *HashIndex) Rehash(steps int) bool {
	emptyVisits := steps * emptyVisitsPerStep
	if !me.IsRehashing() {
		return false
	}

	for ; steps > 0 && me.tables[0].used != 0; steps-- {
		if uint64(me.rehashIdx) >= me.tables[0].size() {
			panic(ErrKeyIndexCorruption)
		}
		for me.tables[0].buckets[me.rehashIdx] == nil {
			me.rehashIdx++
			emptyVisits--
			if emptyVisits == 0 {
				return true
			}
			if uint64(me.rehashIdx) >= me.tables[0].size() {
				panic(ErrKeyIndexCorruption)
			}
		}

		for cur := me.tables[0].buckets[me.rehashIdx]; cur != nil; {
			next := cur.next
			idx := me.hash(cur.key) & me.tables[1].mask()
			cur.next = me.tables[1].buckets[idx]
			me.tables[1].buckets[idx] = cur
			me.tables[0].used--
			me.tables[1].used++
			cur = next
		}
		me.tables[0].buckets[me.rehashIdx] = nil
		me.rehashIdx++
	}

	if me.tables[0].used == 0 {
		me.tables[0] = me.tables[1]
		me.tables[1] = table{}
		me.rehashIdx = -1
		return false
	}
	return true
}

// RehashFor drives rehashing in batches of 100 buckets until the wall-clock
// budget is spent, returning how many buckets were migrated.
func (me *HashIndex) RehashFor(budget time.Duration) int {
	start := time.Now()
	rehashes := 0
	for me.Rehash(100) {
		rehashes += 100
		if time.Since(start) > budget {
			break
		}
	}
	return rehashes
}

func nextPower(size uint64) uint64 {
	out := uint64(initialSize)
	for out < size {
		out <<= 1
	}
	return out
}
