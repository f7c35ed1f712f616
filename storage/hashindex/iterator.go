package hashindex

// Iterator walks every entry across both generations. A safe iterator
// blocks rehash progress for its lifetime, so entries may be mutated or
// deleted while iterating. An unsafe iterator tolerates no structural
// change at all: a fingerprint of the index is taken on first use and
// re-checked at Release, and any mismatch is a caller contract violation.
type Iterator struct {
	owner   *HashIndex
	safe    bool
	table   int
	index   int64
	started bool

	fingerprint uint64
	entry       *Entry
	nextEntry   *Entry
}

func (me *HashIndex) Iterator(safe bool) *Iterator {
	return &Iterator{
		owner: me,
		safe:  safe,
		index: -1,
	}
}

func (me *Iterator) Next() (out *Entry, exists bool) {
	for {
		if me.entry == nil {
			if !me.started {
				me.started = true
				if me.safe {
					me.owner.iterators++
				} else {
					me.fingerprint = me.owner.fingerprint()
				}
			}
			me.index++

			t := &me.owner.tables[me.table]
			if uint64(me.index) >= t.size() {
				if me.owner.IsRehashing() && me.table == 0 {
					me.table = 1
					me.index = 0
					t = &me.owner.tables[1]
				} else {
					return nil, false
				}
			}
			me.entry = t.buckets[me.index]
		} else {
			me.entry = me.nextEntry
		}

		if me.entry != nil {
			// stash next now; a safe iterator's caller may delete the
			// entry we hand out
			me.nextEntry = me.entry.next
			return me.entry, true
		}
	}
}

// Release ends the iteration. For an unsafe iterator this verifies the
// index was not structurally mutated, panicking with
// ErrKeyIndexCorruption if it was.
func (me *Iterator) Release() {
	if !me.started {
		return
	}
	if me.safe {
		me.owner.iterators--
		return
	}
	if me.fingerprint != me.owner.fingerprint() {
		panic(ErrKeyIndexCorruption)
	}
}

// fingerprint folds both generations' identity, size and used-count through
// Tomas Wang's 64-bit integer mix. Same ingredients in a different order
// hash to a different number.
func (me *HashIndex) fingerprint() uint64 {
	integers := [6]uint64{
		me.tables[0].id,
		me.tables[0].size(),
		me.tables[0].used,
		me.tables[1].id,
		me.tables[1].size(),
		me.tables[1].used,
	}

	var hash uint64
	for _, v := range integers {
		hash += v
		hash = (^hash) + (hash << 21)
		hash ^= hash >> 24
		hash = (hash + (hash << 3)) + (hash << 8)
		hash ^= hash >> 14
		hash = (hash + (hash << 2)) + (hash << 4)
		hash ^= hash >> 28
		hash += hash << 31
	}
	return hash
}
