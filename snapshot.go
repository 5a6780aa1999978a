package cnotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Snapshot serializes the tree's full state: parameters, occupied
// nodes, and the retained change-log window.  The encoding is
// deterministic so identical trees share a content address.
func (t *ConcurrentTree) Snapshot() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var buf []byte
	buf = appendLength(buf, t.depth)
	buf = appendLength(buf, t.buffer)
	buf = appendLength(buf, int(t.size))
	buf = appendLength(buf, int(t.seq))
	heaps := make([]uint64, 0, len(t.nodes))
	for heap := range t.nodes {
		heaps = append(heaps, heap)
	}
	sort.Slice(heaps, func(i, j int) bool { return heaps[i] < heaps[j] })
	buf = appendLength(buf, len(heaps))
	for _, heap := range heaps {
		buf = appendLength(buf, int(heap))
		node := t.nodes[heap]
		buf = append(buf, node[:]...)
	}
	oldest := t.oldestSeq()
	buf = appendLength(buf, int(t.seq-oldest+1))
	for s := oldest; s <= t.seq; s++ {
		e := t.ring[s%uint64(t.buffer)]
		buf = appendLength(buf, int(e.index))
		buf = append(buf, e.root[:]...)
		for _, node := range e.path {
			buf = append(buf, node[:]...)
		}
	}
	return buf
}

// RestoreConcurrentTree rebuilds a tree from a snapshot blob.
func RestoreConcurrentTree(blob []byte) (*ConcurrentTree, error) {
	var depth, buffer, size, seq int
	var err error
	buf := blob
	if buf, err = decodeLength(buf, &depth); err != nil {
		return nil, fmt.Errorf("snapshot depth: %w", err)
	}
	if buf, err = decodeLength(buf, &buffer); err != nil {
		return nil, fmt.Errorf("snapshot buffer size: %w", err)
	}
	t, err := NewConcurrentTree(depth, buffer)
	if err != nil {
		return nil, err
	}
	if buf, err = decodeLength(buf, &size); err != nil {
		return nil, fmt.Errorf("snapshot size: %w", err)
	}
	if buf, err = decodeLength(buf, &seq); err != nil {
		return nil, fmt.Errorf("snapshot seq: %w", err)
	}
	if size > 1<<depth {
		return nil, errors.New("snapshot size exceeds capacity")
	}
	t.size = uint32(size)
	t.seq = uint64(seq)
	var nodeCount int
	if buf, err = decodeLength(buf, &nodeCount); err != nil {
		return nil, fmt.Errorf("snapshot node count: %w", err)
	}
	for i := 0; i < nodeCount; i++ {
		var heap int
		if buf, err = decodeLength(buf, &heap); err != nil {
			return nil, fmt.Errorf("snapshot node %d: %w", i, err)
		}
		var node [32]byte
		if buf, err = decodeHash(buf, &node); err != nil {
			return nil, fmt.Errorf("snapshot node %d: %w", i, err)
		}
		t.nodes[uint64(heap)] = node
	}
	var entryCount int
	if buf, err = decodeLength(buf, &entryCount); err != nil {
		return nil, fmt.Errorf("snapshot change-log count: %w", err)
	}
	if entryCount < 1 || entryCount > buffer || uint64(entryCount) > t.seq+1 {
		return nil, errors.New("snapshot change-log count out of range")
	}
	s := t.seq - uint64(entryCount) + 1
	for i := 0; i < entryCount; i++ {
		var e changeLogEntry
		var index int
		if buf, err = decodeLength(buf, &index); err != nil {
			return nil, fmt.Errorf("snapshot change-log entry %d: %w", i, err)
		}
		e.index = uint32(index)
		if buf, err = decodeHash(buf, (*[32]byte)(&e.root)); err != nil {
			return nil, fmt.Errorf("snapshot change-log entry %d: %w", i, err)
		}
		e.path = make([][32]byte, depth)
		for l := 0; l < depth; l++ {
			if buf, err = decodeHash(buf, &e.path[l]); err != nil {
				return nil, fmt.Errorf("snapshot change-log entry %d: %w", i, err)
			}
		}
		t.ring[s%uint64(t.buffer)] = e
		s++
	}
	if len(buf) != 0 {
		return nil, errors.New("trailing bytes after snapshot")
	}
	return t, nil
}

// Save flushes any pending trace entries and persists a snapshot of
// the tree, returning its content-addressed link.  Requires a
// configured Persist and a snapshottable tree.
func (l *Ledger) Save(ctx context.Context) (string, error) {
	if l.persist == nil {
		return "", fmt.Errorf("no persistence mechanism set; set Config.Persist")
	}
	snapshotter, ok := l.tree.(interface{ Snapshot() []byte })
	if !ok {
		return "", fmt.Errorf("tree of type %T cannot snapshot", l.tree)
	}
	if flusher, ok := l.trace.(interface{ Flush(context.Context) error }); ok {
		err := flusher.Flush(ctx)
		if err != nil {
			return "", fmt.Errorf("flush trace: %w", err)
		}
	}
	link, err := storeBlob(ctx, l.persist, snapshotter.Snapshot())
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return link, nil
}

// LoadLedger rebuilds a ledger from a snapshot link previously
// returned by Save.  Config.Persist is required; Config.Trace defaults
// to a persist-backed trace over the same store, so previously flushed
// log records remain discoverable.
func LoadLedger(ctx context.Context, link string, config Config) (*Ledger, error) {
	if config.Persist == nil {
		return nil, fmt.Errorf("no persistence mechanism set; set Config.Persist")
	}
	if config.Auth == nil {
		return nil, fmt.Errorf("no authorization context set; set Config.Auth")
	}
	blob, err := config.Persist.Load(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", link, err)
	}
	tree, err := RestoreConcurrentTree(blob)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %s: %w", link, err)
	}
	trace := config.Trace
	if trace == nil {
		trace = NewPersistTraceLog(config.Persist)
	}
	return &Ledger{
		tree:    tree,
		trace:   trace,
		auth:    config.Auth,
		persist: config.Persist,
		debug:   config.Debug,
	}, nil
}
