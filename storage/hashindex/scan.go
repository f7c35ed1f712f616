package hashindex

import "math/bits"

// Scan performs one step of a stateless resumable full-table scan. Start
// with cursor 0, feed each returned cursor back in, and stop when 0 comes
// back. Every key continuously present across the whole scan is emitted at
// least once; duplicates are possible when the table resizes between calls,
// omissions are not.
//
// The cursor walks buckets in reverse-binary-increment order (Pieter
// Noordhuis' algorithm): masked bits are incremented from the high end, so
// buckets fully visited under a smaller mask are never revisited after the
// table grows, and unvisited buckets are reached through all of their
// expansions. While a rehash is in flight the smaller generation's bucket is
// emitted first, then every expansion of it in the larger generation.
func (me *HashIndex) Scan(cursor uint64, fn func(*Entry)) uint64 {
	if me.Len() == 0 {
		return 0
	}

	if !me.IsRehashing() {
		t0 := &me.tables[0]
		m0 := t0.mask()

		for cur := t0.buckets[cursor&m0]; cur != nil; cur = cur.next {
			fn(cur)
		}

		cursor |= ^m0
		cursor = bits.Reverse64(cursor)
		cursor++
		return bits.Reverse64(cursor)
	}

	t0, t1 := &me.tables[0], &me.tables[1]
	if t0.size() > t1.size() {
		t0, t1 = t1, t0
	}
	m0, m1 := t0.mask(), t1.mask()

	for cur := t0.buckets[cursor&m0]; cur != nil; cur = cur.next {
		fn(cur)
	}

	// visit every expansion of this bucket in the larger table
	for {
		for cur := t1.buckets[cursor&m1]; cur != nil; cur = cur.next {
			fn(cur)
		}
		cursor = (((cursor | m0) + 1) & ^m0) | (cursor & m0)
		if cursor&(m0^m1) == 0 {
			break
		}
	}

	cursor |= ^m0
	cursor = bits.Reverse64(cursor)
	cursor++
	return bits.Reverse64(cursor)
}
