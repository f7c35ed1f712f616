package sortedset

import "github.com/ordkv/ordkv/storage/hashindex"

// Scan performs one step of a stateless resumable scan over all members:
// start at cursor 0 and stop when 0 comes back. In the expanded
// representation this is the hash index's resize-tolerant scan, so members
// may be emitted more than once across steps but are never skipped. A
// compact set is small by construction and is emitted whole in one step.
func (me *SortedSet) Scan(cursor uint64, fn func(member string, score float64)) uint64 {
	if me.encoding == EncodingCompact {
		me.each(func(member string, score float64) bool {
			fn(member, score)
			return true
		})
		return 0
	}
	return me.index.Scan(cursor, func(entry *hashindex.Entry) {
		fn(entry.Key(), me.nodeOf(entry).Score())
	})
}
