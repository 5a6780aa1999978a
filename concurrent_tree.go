package cnotes

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
)

const (
	// MaxTreeDepth bounds depth so a full proof still fits a
	// size-limited transport frame alongside the fixed fields.
	MaxTreeDepth = 24
	// MaxBufferSize bounds the change-log history length.
	MaxBufferSize = 2048
)

// changeLogEntry records one mutation: the position it touched, the
// new node value at every level of that position's path (path[0] is
// the leaf itself), and the root it produced.  Entries are retained
// for the buffer window only, evicted oldest-first.
type changeLogEntry struct {
	index uint32
	path  [][32]byte
	root  Root
}

// ConcurrentTree is an in-memory commitment tree: an arena of
// fixed-size leaf slots plus a ring buffer of recent root/patch
// history.  Proof validation is a pure function over the ring, which
// is what lets writers holding recent-but-stale roots commit against
// disjoint positions without locking each other out.
type ConcurrentTree struct {
	mu     sync.Mutex
	depth  int
	buffer int
	size   uint32
	// nodes holds occupied node hashes keyed by heap index (root is 1,
	// node i has children 2i and 2i+1).  Absent nodes are empty
	// subtrees, whose hashes are precomputed in zero.
	nodes map[uint64][32]byte
	zero  [][32]byte
	seq   uint64
	ring  []changeLogEntry
}

var _ CommitmentTree = (*ConcurrentTree)(nil)

// NewConcurrentTree allocates an empty tree of capacity 2^depth leaves
// with a change-log history of bufferSize entries.  Both parameters
// are fixed for the life of the tree.
func NewConcurrentTree(depth, bufferSize int) (*ConcurrentTree, error) {
	if depth < 1 || depth > MaxTreeDepth {
		return nil, fmt.Errorf("depth %d not in [1,%d]: %w", depth, MaxTreeDepth, ErrInvalidTreeParameters)
	}
	if bufferSize < 1 || bufferSize > MaxBufferSize {
		return nil, fmt.Errorf("buffer size %d not in [1,%d]: %w", bufferSize, MaxBufferSize, ErrInvalidTreeParameters)
	}
	zero := make([][32]byte, depth+1)
	for i := 1; i <= depth; i++ {
		zero[i] = hashNodes(zero[i-1], zero[i-1])
	}
	t := &ConcurrentTree{
		depth:  depth,
		buffer: bufferSize,
		nodes:  map[uint64][32]byte{},
		zero:   zero,
		ring:   make([]changeLogEntry, bufferSize),
	}
	// seq 0 is the empty tree, so the initial root is presentable to
	// Replace like any other.
	t.ring[0] = changeLogEntry{path: make([][32]byte, depth), root: Root(zero[depth])}
	for l := 0; l < depth; l++ {
		t.ring[0].path[l] = zero[l]
	}
	return t, nil
}

// Depth returns the tree's fixed depth; capacity is 2^depth leaves.
func (t *ConcurrentTree) Depth() int { return t.depth }

// BufferSize returns the length of the retained change-log history.
func (t *ConcurrentTree) BufferSize() int { return t.buffer }

// Size returns the number of leaves appended so far.
func (t *ConcurrentTree) Size() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// heapIndex returns the heap index of the node at the given level on
// position's path.  Level 0 is the leaf, level depth is the root.
func (t *ConcurrentTree) heapIndex(position uint32, level int) uint64 {
	return uint64(1)<<(t.depth-level) + uint64(position>>level)
}

func (t *ConcurrentTree) nodeAt(heap uint64, level int) [32]byte {
	if n, ok := t.nodes[heap]; ok {
		return n
	}
	return t.zero[level]
}

// siblings collects, leaf to root, the sibling hash at each level of
// position's path.
func (t *ConcurrentTree) siblings(position uint32) [][32]byte {
	sib := make([][32]byte, t.depth)
	for l := 0; l < t.depth; l++ {
		sib[l] = t.nodeAt(t.heapIndex(position, l)^1, l)
	}
	return sib
}

// apply writes the leaf at position, recomputes its path against the
// given siblings, records the change-log entry, and returns the new
// root.  Callers hold t.mu.
func (t *ConcurrentTree) apply(position uint32, leaf LeafCommitment, sib [][32]byte) Root {
	path := make([][32]byte, t.depth)
	node := [32]byte(leaf)
	for l := 0; l < t.depth; l++ {
		path[l] = node
		t.nodes[t.heapIndex(position, l)] = node
		if position>>l&1 == 1 {
			node = hashNodes(sib[l], node)
		} else {
			node = hashNodes(node, sib[l])
		}
	}
	t.nodes[1] = node
	t.seq++
	t.ring[t.seq%uint64(t.buffer)] = changeLogEntry{index: position, path: path, root: Root(node)}
	return Root(node)
}

// Append writes the leaf into the next unused slot.
func (t *ConcurrentTree) Append(ctx context.Context, leaf LeafCommitment) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.size == uint32(1)<<t.depth {
		return 0, fmt.Errorf("capacity %d reached: %w", t.size, ErrTreeFull)
	}
	position := t.size
	t.size++
	t.apply(position, leaf, t.siblings(position))
	return position, nil
}

// oldestSeq returns the lowest mutation number still inside the
// change-log window.  Callers hold t.mu.
func (t *ConcurrentTree) oldestSeq() uint64 {
	if t.seq < uint64(t.buffer) {
		return 0
	}
	return t.seq - uint64(t.buffer) + 1
}

// Replace swaps the leaf at position after validating proof against
// the presented root.  A root inside the window but behind the current
// one is fast-forwarded: every newer change-log entry patches the one
// proof sibling its path shares with ours, and an entry for the same
// position means a concurrent writer won the slot.
func (t *ConcurrentTree) Replace(ctx context.Context, position uint32, oldLeaf, newLeaf LeafCommitment, proof Proof, root Root) (Root, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if position >= uint32(1)<<t.depth {
		return Root{}, fmt.Errorf("position %d out of range: %w", position, ErrStaleRootOrInvalidProof)
	}
	if len(proof.Siblings) != t.depth {
		return Root{}, fmt.Errorf("proof has %d siblings, want %d: %w", len(proof.Siblings), t.depth, ErrStaleRootOrInvalidProof)
	}
	start, found := uint64(0), false
	for s := t.seq; ; s-- {
		if t.ring[s%uint64(t.buffer)].root == root {
			start, found = s, true
			break
		}
		if s == t.oldestSeq() {
			break
		}
	}
	if !found {
		return Root{}, fmt.Errorf("root %s not in change-log window: %w", root, ErrStaleRootOrInvalidProof)
	}
	sib := make([][32]byte, t.depth)
	copy(sib, proof.Siblings)
	for s := start + 1; s <= t.seq; s++ {
		e := t.ring[s%uint64(t.buffer)]
		if e.index == position {
			return Root{}, fmt.Errorf("position %d changed since presented root: %w", position, ErrStaleRootOrInvalidProof)
		}
		// The highest differing bit of the two positions is the level at
		// which e's path enters our sibling subtree.
		lvl := bits.Len32(e.index^position) - 1
		sib[lvl] = e.path[lvl]
	}
	node := [32]byte(oldLeaf)
	for l := 0; l < t.depth; l++ {
		if position>>l&1 == 1 {
			node = hashNodes(sib[l], node)
		} else {
			node = hashNodes(node, sib[l])
		}
	}
	if Root(node) != t.ring[t.seq%uint64(t.buffer)].root {
		return Root{}, fmt.Errorf("proof does not place leaf at position %d: %w", position, ErrStaleRootOrInvalidProof)
	}
	return t.apply(position, newLeaf, sib), nil
}

// CurrentRoot returns the latest root.
func (t *ConcurrentTree) CurrentRoot(ctx context.Context) (Root, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ring[t.seq%uint64(t.buffer)].root, nil
}

// GenerateProof returns a proof for position against the current root.
func (t *ConcurrentTree) GenerateProof(ctx context.Context, position uint32) (Proof, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if position >= uint32(1)<<t.depth {
		return Proof{}, fmt.Errorf("position %d out of range: %w", position, ErrStaleRootOrInvalidProof)
	}
	return Proof{Siblings: t.siblings(position)}, nil
}
