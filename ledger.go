package cnotes

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// AuthContext supplies the calling identity a mutation runs as.  The
// ledger checks it against the owner recorded for a note before any
// tree call.
type AuthContext interface {
	Caller() Owner
}

type staticAuth Owner

func (a staticAuth) Caller() Owner { return Owner(a) }

// StaticAuth returns an AuthContext that always reports the given
// identity, for embedding and tests.
func StaticAuth(owner Owner) AuthContext {
	return staticAuth(owner)
}

// Options sets initial parameters for the tree that are fixed at
// allocation time and not resizable.
type Options struct {
	// Depth of the commitment tree; capacity is 2^Depth notes.
	Depth int
	// BufferSize is the change-log history length: the concurrency
	// window is the BufferSize most recent mutations.
	BufferSize int
}

// Config controls the collaborators a ledger is wired to.
type Config struct {
	// Tree overrides the commitment tree.  Defaults to a new
	// ConcurrentTree built from Options.
	Tree CommitmentTree

	// Trace receives one framed log record per mutation.  Defaults to
	// an in-memory trace log.
	Trace TraceLog

	// Auth supplies the calling identity.  Required.
	Auth AuthContext

	// Persist, if set, is used for snapshots via Save and LoadLedger,
	// and reserved at creation time.
	Persist Persist

	// Debug enables commentary on stdout.
	Debug bool
}

// Ledger orchestrates the commitment tree, the leaf codec and the
// trace log.  It holds no mutable state shared between operations
// beyond a locator counter; all coordination happens inside the tree,
// and each mutation is a single atomic call into it.
type Ledger struct {
	tree       CommitmentTree
	trace      TraceLog
	auth       AuthContext
	persist    Persist
	debug      bool
	locatorSeq atomic.Uint64
}

// AppendResult reports a successful append: the assigned leaf
// position, the root observed after the mutation, and the locator the
// emitted log record is discoverable under.
type AppendResult struct {
	Position uint32
	Root     Root
	Locator  string
}

// UpdateResult reports a successful update.  Locator is empty when the
// update was a content no-op and nothing was emitted.
type UpdateResult struct {
	Root    Root
	Locator string
}

// CreateLedger allocates a ledger over an empty tree with the given
// parameters.  Invalid depth or buffer size fails with
// ErrInvalidTreeParameters; a configured Persist that cannot take the
// initial snapshot fails with ErrAllocationFailed.
func CreateLedger(ctx context.Context, options Options, config Config) (*Ledger, error) {
	if config.Auth == nil {
		return nil, fmt.Errorf("no authorization context set; set Config.Auth")
	}
	tree := config.Tree
	if tree == nil {
		var err error
		tree, err = NewConcurrentTree(options.Depth, options.BufferSize)
		if err != nil {
			return nil, err
		}
	}
	trace := config.Trace
	if trace == nil {
		if config.Persist != nil {
			trace = NewPersistTraceLog(config.Persist)
		} else {
			trace = NewInMemoryTraceLog()
		}
	}
	l := &Ledger{
		tree:    tree,
		trace:   trace,
		auth:    config.Auth,
		persist: config.Persist,
		debug:   config.Debug,
	}
	if l.persist != nil {
		_, err := l.Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("reserve snapshot storage: %w: %v", ErrAllocationFailed, err)
		}
	}
	return l, nil
}

// AppendNote commits a new note: hashes (note, owner) into a leaf,
// appends it to the tree, and emits the paired log record.  The two
// commit as one indivisible unit; on any error no leaf is written and
// nothing is emitted.
func (l *Ledger) AppendNote(ctx context.Context, note string, owner Owner) (AppendResult, error) {
	if len(note) > MaxNoteSize {
		return AppendResult{}, fmt.Errorf("note is %d bytes, max %d: %w", len(note), MaxNoteSize, ErrPayloadTooLarge)
	}
	if l.auth.Caller() != owner {
		return AppendResult{}, fmt.Errorf("caller %s appending as %s: %w", l.auth.Caller(), owner, ErrUnauthorizedOwner)
	}
	leaf := CommitLeaf(note, owner)
	position, err := l.tree.Append(ctx, leaf)
	if err != nil {
		return AppendResult{}, fmt.Errorf("append leaf: %w", err)
	}
	record := NoteLog{LeafNode: leaf, Owner: owner, Note: note}
	locator, err := l.emit(ctx, &record)
	if err != nil {
		return AppendResult{}, err
	}
	if l.debug {
		fmt.Printf("appended note at position %d, locator %s\n", position, locator)
	}
	root, err := l.tree.CurrentRoot(ctx)
	if err != nil {
		return AppendResult{}, fmt.Errorf("current root: %w", err)
	}
	return AppendResult{Position: position, Root: root, Locator: locator}, nil
}

// UpdateNote replaces the note at position.  The caller must prove it
// knows the note's exact current content (oldNote) and present a root
// no older than the tree's change-log window; a caller whose view has
// been overtaken gets ErrStaleRootOrInvalidProof and is expected to
// refetch CurrentRoot, recompute, and retry at its own discretion.
// Updating a note to its current content is a no-op: nothing is
// written or emitted.
func (l *Ledger) UpdateNote(ctx context.Context, position uint32, expectedRoot Root, oldNote, newNote string, owner Owner) (UpdateResult, error) {
	if len(newNote) > MaxNoteSize {
		return UpdateResult{}, fmt.Errorf("note is %d bytes, max %d: %w", len(newNote), MaxNoteSize, ErrPayloadTooLarge)
	}
	if l.auth.Caller() != owner {
		return UpdateResult{}, fmt.Errorf("caller %s updating note owned by %s: %w", l.auth.Caller(), owner, ErrUnauthorizedOwner)
	}
	if oldNote == newNote {
		root, err := l.tree.CurrentRoot(ctx)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("current root: %w", err)
		}
		return UpdateResult{Root: root}, nil
	}
	oldLeaf := CommitLeaf(oldNote, owner)
	newLeaf := CommitLeaf(newNote, owner)
	proof, err := l.tree.GenerateProof(ctx, position)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("generate proof: %w", err)
	}
	newRoot, err := l.tree.Replace(ctx, position, oldLeaf, newLeaf, proof, expectedRoot)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("replace leaf: %w", err)
	}
	record := NoteLog{LeafNode: newLeaf, Owner: owner, Note: newNote}
	locator, err := l.emit(ctx, &record)
	if err != nil {
		return UpdateResult{}, err
	}
	if l.debug {
		fmt.Printf("updated note at position %d, locator %s\n", position, locator)
	}
	return UpdateResult{Root: newRoot, Locator: locator}, nil
}

// emit writes the record's frame to the trace under a fresh locator.
func (l *Ledger) emit(ctx context.Context, record *NoteLog) (string, error) {
	frame := record.Marshal()
	locator := l.newLocator(frame)
	err := l.trace.Emit(ctx, locator, frame)
	if err != nil {
		return "", fmt.Errorf("emit log record: %w", err)
	}
	return locator, nil
}

// newLocator derives a unique per-mutation locator by content-hashing
// the frame salted with a monotone counter, so identical records
// emitted twice still land under distinct locators.
func (l *Ledger) newLocator(frame []byte) string {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], l.locatorSeq.Add(1))
	buf := make([]byte, 0, len(seq)+len(frame))
	buf = append(buf, seq[:]...)
	buf = append(buf, frame...)
	return contentAddress(buf)
}

// CurrentRoot returns the tree's latest root, the value an updater
// should capture before computing its change.
func (l *Ledger) CurrentRoot(ctx context.Context) (Root, error) {
	return l.tree.CurrentRoot(ctx)
}
