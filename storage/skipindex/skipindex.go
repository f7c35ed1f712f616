package skipindex

import (
	"math/rand"
	"time"

	"github.com/ordkv/ordkv/util"
)

const (
	maxLevel = 32

	// probability of promoting a node one more level
	probability = 0.25
)

type level struct {
	forward *Node

	// number of base-level nodes this forward pointer skips over,
	// including the target; rank queries sum spans during descent
	span uint64
}

// Node is a single (score, member) pair. Nodes are ordered by score with
// ties broken by byte-wise member comparison.
type Node struct {
	member   string
	score    float64
	backward *Node
	levels   []level
}

func (me *Node) Member() string {
	return me.member
}

func (me *Node) Score() float64 {
	return me.score
}

func (me *Node) Next() *Node {
	return me.levels[0].forward
}

func (me *Node) Prev() *Node {
	return me.backward
}

// SkipIndex is a multi-level forward-linked ordered structure over
// (score, member) pairs. Each node's level count is drawn from a geometric
// distribution at insertion, so the expected descent cost is logarithmic
// without any rebalancing. The base level is additionally back-linked for
// reverse traversal.
type SkipIndex struct {
	header *Node
	tail   *Node
	length uint64
	level  int
	rng    *rand.Rand
}

type Args struct {
	// RandomSeed fixes the level-draw sequence; useful for reproducing
	// a specific shape in tests.
	RandomSeed util.Optional[int64]
}

func New(args Args) *SkipIndex {
	seed, exists := args.RandomSeed.Unpack()
	if !exists {
		seed = time.Now().UnixNano()
	}
	return &SkipIndex{
		header: newNode(maxLevel, 0, ""),
		level:  1,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func newNode(levelCount int, score float64, member string) *Node {
	return &Node{
		member: member,
		score:  score,
		levels: make([]level, levelCount),
	}
}

func (me *SkipIndex) Len() uint64 {
	return me.length
}

// First returns the base-level head node, or nil when empty.
func (me *SkipIndex) First() *Node {
	return me.header.levels[0].forward
}

func (me *SkipIndex) Last() *Node {
	return me.tail
}

func (me *SkipIndex) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && me.rng.Float64() < probability {
		lvl++
	}
	return lvl
}

// precedes reports whether node (score, member) orders strictly before the
// given key.
func precedes(node *Node, score float64, member string) bool {
	return node.score < score || (node.score == score && node.member < member)
}

// Insert adds the pair; the caller guarantees (score, member) is not
// already present.
func (me *SkipIndex) Insert(score float64, member string) *Node {
	var update [maxLevel]*Node
	var rank [maxLevel]uint64

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		if i == me.level-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		for cur.levels[i].forward != nil && precedes(cur.levels[i].forward, score, member) {
			rank[i] += cur.levels[i].span
			cur = cur.levels[i].forward
		}
		update[i] = cur
	}

	lvl := me.randomLevel()
	if lvl > me.level {
		for i := me.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = me.header
			update[i].levels[i].span = me.length
		}
		me.level = lvl
	}

	node := newNode(lvl, score, member)
	for i := 0; i < lvl; i++ {
		node.levels[i].forward = update[i].levels[i].forward
		update[i].levels[i].forward = node

		node.levels[i].span = update[i].levels[i].span - (rank[0] - rank[i])
		update[i].levels[i].span = (rank[0] - rank[i]) + 1
	}
	for i := lvl; i < me.level; i++ {
		update[i].levels[i].span++
	}

	if update[0] != me.header {
		node.backward = update[0]
	}
	if node.levels[0].forward != nil {
		node.levels[0].forward.backward = node
	} else {
		me.tail = node
	}
	me.length++
	return node
}

// Delete removes the exact (score, member) pair.
func (me *SkipIndex) Delete(score float64, member string) bool {
	var update [maxLevel]*Node

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && precedes(cur.levels[i].forward, score, member) {
			cur = cur.levels[i].forward
		}
		update[i] = cur
	}

	target := update[0].levels[0].forward
	if target == nil || target.score != score || target.member != member {
		return false
	}
	me.deleteNode(target, &update)
	return true
}

func (me *SkipIndex) deleteNode(node *Node, update *[maxLevel]*Node) {
	for i := 0; i < me.level; i++ {
		if update[i].levels[i].forward == node {
			update[i].levels[i].span += node.levels[i].span - 1
			update[i].levels[i].forward = node.levels[i].forward
		} else {
			update[i].levels[i].span--
		}
	}

	if node.levels[0].forward != nil {
		node.levels[0].forward.backward = node.backward
	} else {
		me.tail = node.backward
	}
	for me.level > 1 && me.header.levels[me.level-1].forward == nil {
		me.level--
	}
	me.length--
}

// Rank returns the 1-based position of the pair, or 0 when absent.
func (me *SkipIndex) Rank(score float64, member string) uint64 {
	var rank uint64

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil &&
			(precedes(cur.levels[i].forward, score, member) ||
				(cur.levels[i].forward.score == score && cur.levels[i].forward.member == member)) {
			rank += cur.levels[i].span
			cur = cur.levels[i].forward
		}
		if cur != me.header && cur.member == member {
			return rank
		}
	}
	return 0
}

// ByRank returns the node at the 1-based rank, or nil when out of bounds.
func (me *SkipIndex) ByRank(rank uint64) *Node {
	if rank == 0 || rank > me.length {
		return nil
	}
	var traversed uint64

	cur := me.header
	for i := me.level - 1; i >= 0; i-- {
		for cur.levels[i].forward != nil && traversed+cur.levels[i].span <= rank {
			traversed += cur.levels[i].span
			cur = cur.levels[i].forward
		}
		if traversed == rank {
			return cur
		}
	}
	return nil
}
