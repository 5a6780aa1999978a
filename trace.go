package cnotes

import (
	"context"
	"fmt"
	"sync"
)

// TraceLog is the append-only side channel log records are emitted to,
// one trace entry per mutation.  A locator is the out-of-band handle
// (analogous to a transaction identifier) under which a mutation's
// candidate frames are discoverable.  Entries are never mutated once
// written.
type TraceLog interface {
	// Emit appends a candidate frame under the given locator.
	Emit(ctx context.Context, locator string, frame []byte) error
	// Frames returns every candidate frame recorded under the locator,
	// in emission order.
	Frames(ctx context.Context, locator string) ([][]byte, error)
}

type inMemoryTraceLog struct {
	entries map[string][][]byte
	l       sync.Mutex
}

// NewInMemoryTraceLog returns a TraceLog that keeps trace entries in a
// map.  Its Emit never fails, which is what makes a tree mutation and
// its log emission indivisible from the caller's point of view.
func NewInMemoryTraceLog() TraceLog {
	return &inMemoryTraceLog{}
}

func (tl *inMemoryTraceLog) Emit(ctx context.Context, locator string, frame []byte) error {
	tl.l.Lock()
	if tl.entries == nil {
		tl.entries = map[string][][]byte{}
	}
	tl.entries[locator] = append(tl.entries[locator], frame)
	tl.l.Unlock()
	return nil
}

func (tl *inMemoryTraceLog) Frames(ctx context.Context, locator string) ([][]byte, error) {
	tl.l.Lock()
	frames, ok := tl.entries[locator]
	tl.l.Unlock()
	if !ok {
		return nil, fmt.Errorf("no trace entry for locator %s: %w", locator, ErrLogNotFound)
	}
	return frames, nil
}

// PersistTraceLog is a TraceLog whose authoritative entries live in
// memory and are flushed to a Persist on demand, so emission itself
// cannot fail partway through a mutation.  Each locator's frames are
// stored as one uvarint-framed blob.
type PersistTraceLog struct {
	persist Persist
	l       sync.Mutex
	entries map[string][][]byte
	dirty   map[string]bool
}

// NewPersistTraceLog returns a TraceLog backed by the given Persist.
func NewPersistTraceLog(persist Persist) *PersistTraceLog {
	return &PersistTraceLog{
		persist: persist,
		entries: map[string][][]byte{},
		dirty:   map[string]bool{},
	}
}

func (tl *PersistTraceLog) Emit(ctx context.Context, locator string, frame []byte) error {
	tl.l.Lock()
	tl.entries[locator] = append(tl.entries[locator], frame)
	tl.dirty[locator] = true
	tl.l.Unlock()
	return nil
}

func (tl *PersistTraceLog) Frames(ctx context.Context, locator string) ([][]byte, error) {
	tl.l.Lock()
	frames, ok := tl.entries[locator]
	tl.l.Unlock()
	if ok {
		return frames, nil
	}
	blob, err := tl.persist.Load(ctx, traceKey(locator))
	if err != nil {
		return nil, fmt.Errorf("no trace entry for locator %s: %w", locator, ErrLogNotFound)
	}
	frames, err = unpackFrames(blob)
	if err != nil {
		return nil, fmt.Errorf("unpack trace entry %s: %w", locator, err)
	}
	tl.l.Lock()
	if _, present := tl.entries[locator]; !present {
		tl.entries[locator] = frames
	}
	tl.l.Unlock()
	return frames, nil
}

// Flush writes every trace entry emitted since the last flush to the
// underlying Persist.
func (tl *PersistTraceLog) Flush(ctx context.Context) error {
	tl.l.Lock()
	pending := make(map[string][][]byte, len(tl.dirty))
	for locator := range tl.dirty {
		pending[locator] = tl.entries[locator]
	}
	tl.l.Unlock()
	for locator, frames := range pending {
		err := tl.persist.Store(ctx, traceKey(locator), packFrames(frames))
		if err != nil {
			return fmt.Errorf("store trace entry %s: %w", locator, err)
		}
		tl.l.Lock()
		delete(tl.dirty, locator)
		tl.l.Unlock()
	}
	return nil
}

func traceKey(locator string) string {
	return "trace/" + locator
}
