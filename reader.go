package cnotes

import (
	"context"
	"fmt"
)

// Reader reconstructs note content from the trace, independently of
// the ledger that emitted it.
type Reader struct {
	trace TraceLog
	cache RecordCache
}

// NewReader returns a Reader over the given trace.  cache may be nil;
// sharing a RecordCache across readers is fine.
func NewReader(trace TraceLog, cache RecordCache) *Reader {
	return &Reader{trace: trace, cache: cache}
}

// Decode locates and verifies the note log record emitted under the
// given locator.  A trace entry may carry several candidate frames,
// not all belonging to this schema, so candidates are tried most
// recent first and ones that don't decode structurally are skipped.
// The first structurally-valid frame is authoritative: if it fails
// verification the scan aborts with ErrIntegrityViolation rather than
// falling through to an older candidate.  ErrLogNotFound when no
// frame decodes at all.
func (r *Reader) Decode(ctx context.Context, locator string) (NoteLog, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(locator); ok {
			return cached.(NoteLog), nil
		}
	}
	frames, err := r.trace.Frames(ctx, locator)
	if err != nil {
		return NoteLog{}, err
	}
	for i := len(frames) - 1; i >= 0; i-- {
		record, err := UnmarshalNoteLog(frames[i])
		if err != nil {
			continue
		}
		if err := record.Verify(); err != nil {
			return NoteLog{}, fmt.Errorf("frame under locator %s: %w", locator, err)
		}
		if r.cache != nil {
			r.cache.Add(locator, record)
		}
		return record, nil
	}
	return NoteLog{}, fmt.Errorf("none of %d frames under locator %s decode: %w", len(frames), locator, ErrLogNotFound)
}

// TraceRef ties a mutation's locator to the leaf position it targeted.
// Position isn't part of the wire record; it comes from the same
// out-of-band channel the locator does.
type TraceRef struct {
	Locator  string
	Position uint32
}

// Replay folds a ledger's mutation history, in emission order, into
// the latest verified record per position.  Any record that fails to
// decode or verify aborts the replay; an unverified record is never
// returned.
func (r *Reader) Replay(ctx context.Context, refs []TraceRef) (map[uint32]NoteLog, error) {
	content := make(map[uint32]NoteLog, len(refs))
	for _, ref := range refs {
		record, err := r.Decode(ctx, ref.Locator)
		if err != nil {
			return nil, fmt.Errorf("replay position %d: %w", ref.Position, err)
		}
		content[ref.Position] = record
	}
	return content, nil
}
