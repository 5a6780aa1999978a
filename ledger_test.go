package cnotes

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// countingTrace wraps a TraceLog to observe how many frames mutations
// actually emit.
type countingTrace struct {
	TraceLog
	emits int
}

func (c *countingTrace) Emit(ctx context.Context, locator string, frame []byte) error {
	c.emits++
	return c.TraceLog.Emit(ctx, locator, frame)
}

func newTestLedger(t *testing.T, owner Owner) (*Ledger, *countingTrace) {
	t.Helper()
	trace := &countingTrace{TraceLog: NewInMemoryTraceLog()}
	ledger, err := CreateLedger(ctx, Options{Depth: 3, BufferSize: 8}, Config{
		Trace: trace,
		Auth:  StaticAuth(owner),
	})
	require.NoError(t, err)
	return ledger, trace
}

func TestCreateLedgerValidation(t *testing.T) {
	t.Parallel()
	_, err := CreateLedger(ctx, Options{Depth: 3, BufferSize: 8}, Config{})
	require.Error(t, err, "auth is required")

	_, err = CreateLedger(ctx, Options{Depth: 0, BufferSize: 8}, Config{Auth: StaticAuth(ownerFromByte(1))})
	require.ErrorIs(t, err, ErrInvalidTreeParameters)

	_, err = CreateLedger(ctx, Options{Depth: 3, BufferSize: MaxBufferSize + 1}, Config{Auth: StaticAuth(ownerFromByte(1))})
	require.ErrorIs(t, err, ErrInvalidTreeParameters)
}

func TestAppendAndReconstruct(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(1)
	ledger, trace := newTestLedger(t, owner)

	res, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)
	require.Equal(t, uint32(0), res.Position)
	require.NotEmpty(t, res.Locator)
	require.Equal(t, 1, trace.emits)

	reader := NewReader(trace, nil)
	record, err := reader.Decode(ctx, res.Locator)
	require.NoError(t, err)
	assert.Equal(t, "hello world", record.Note)
	assert.Equal(t, owner, record.Owner)
	assert.Equal(t, CommitLeaf("hello world", owner), record.LeafNode)
}

func TestAppendMaxSizeNote(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(2)
	ledger, trace := newTestLedger(t, owner)

	note := string(make([]byte, MaxNoteSize))
	res, err := ledger.AppendNote(ctx, note, owner)
	require.NoError(t, err)

	record, err := NewReader(trace, nil).Decode(ctx, res.Locator)
	require.NoError(t, err)
	require.Equal(t, note, record.Note)
}

func TestAppendPayloadTooLarge(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(2)
	ledger, trace := newTestLedger(t, owner)

	_, err := ledger.AppendNote(ctx, string(make([]byte, MaxNoteSize+1)), owner)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	require.Equal(t, 0, trace.emits)
}

// Appending is deliberately not idempotent: the same content lands at
// a new position every time, with identical commitments.
func TestAppendDuplicateContent(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(3)
	ledger, trace := newTestLedger(t, owner)

	first, err := ledger.AppendNote(ctx, "same note", owner)
	require.NoError(t, err)
	second, err := ledger.AppendNote(ctx, "same note", owner)
	require.NoError(t, err)
	require.Equal(t, uint32(0), first.Position)
	require.Equal(t, uint32(1), second.Position)
	require.NotEqual(t, first.Locator, second.Locator)
	require.Equal(t, 2, trace.emits)

	reader := NewReader(trace, nil)
	recordA, err := reader.Decode(ctx, first.Locator)
	require.NoError(t, err)
	recordB, err := reader.Decode(ctx, second.Locator)
	require.NoError(t, err)
	require.Equal(t, recordA.LeafNode, recordB.LeafNode)
}

func TestAppendUntilTreeFull(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(4)
	ledger, trace := newTestLedger(t, owner)

	for i := 0; i < 8; i++ {
		res, err := ledger.AppendNote(ctx, fmt.Sprintf("note %d", i), owner)
		require.NoError(t, err)
		require.Equal(t, uint32(i), res.Position)
	}
	_, err := ledger.AppendNote(ctx, "one too many", owner)
	require.ErrorIs(t, err, ErrTreeFull)
	require.Equal(t, 8, trace.emits)
}

func TestUpdateNote(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(5)
	ledger, trace := newTestLedger(t, owner)

	appended, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)

	updated, err := ledger.UpdateNote(ctx, appended.Position, appended.Root, "hello world", "updated note", owner)
	require.NoError(t, err)
	require.NotEqual(t, appended.Root, updated.Root)
	require.Equal(t, 2, trace.emits)

	record, err := NewReader(trace, nil).Decode(ctx, updated.Locator)
	require.NoError(t, err)
	assert.Equal(t, "updated note", record.Note)
	assert.Equal(t, CommitLeaf("updated note", owner), record.LeafNode)
}

func TestUpdateNoteNoop(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(5)
	ledger, trace := newTestLedger(t, owner)

	appended, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)

	res, err := ledger.UpdateNote(ctx, appended.Position, appended.Root, "hello world", "hello world", owner)
	require.NoError(t, err)
	require.Empty(t, res.Locator)
	require.Equal(t, appended.Root, res.Root)
	require.Equal(t, 1, trace.emits, "no-op update must not emit")
}

func TestUpdateNoteWrongOwner(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(6)
	other := ownerFromByte(7)
	ledger, trace := newTestLedger(t, owner)

	appended, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)

	_, err = ledger.UpdateNote(ctx, appended.Position, appended.Root, "hello world", "stolen", other)
	require.ErrorIs(t, err, ErrUnauthorizedOwner)
	require.Equal(t, 1, trace.emits)
	root, err := ledger.CurrentRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, appended.Root, root, "owner check must precede any tree mutation")
}

func TestUpdateNoteWrongOldContent(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(6)
	ledger, trace := newTestLedger(t, owner)

	appended, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)

	_, err = ledger.UpdateNote(ctx, appended.Position, appended.Root, "not the content", "new", owner)
	require.ErrorIs(t, err, ErrStaleRootOrInvalidProof)
	require.Equal(t, 1, trace.emits)
	root, err := ledger.CurrentRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, appended.Root, root)
}

// A root captured before the change-log window slid past it is
// rejected, and the failed update emits nothing.
func TestUpdateNoteStaleRoot(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(8)
	trace := &countingTrace{TraceLog: NewInMemoryTraceLog()}
	ledger, err := CreateLedger(ctx, Options{Depth: 3, BufferSize: 2}, Config{
		Trace: trace,
		Auth:  StaticAuth(owner),
	})
	require.NoError(t, err)

	appended, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)
	staleRoot := appended.Root

	// Other callers push the captured root out of the window.
	_, err = ledger.AppendNote(ctx, "two", owner)
	require.NoError(t, err)
	_, err = ledger.AppendNote(ctx, "three", owner)
	require.NoError(t, err)
	emitted := trace.emits

	_, err = ledger.UpdateNote(ctx, appended.Position, staleRoot, "hello world", "rewrite", owner)
	require.ErrorIs(t, err, ErrStaleRootOrInvalidProof)
	require.Equal(t, emitted, trace.emits, "failed update must not emit")
}

// An update whose root was superseded only by appends at other
// positions still lands, as long as the window covers them.
func TestUpdateNoteConcurrentAppendsTolerated(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(9)
	ledger, trace := newTestLedger(t, owner)

	appended, err := ledger.AppendNote(ctx, "hello world", owner)
	require.NoError(t, err)
	capturedRoot := appended.Root

	_, err = ledger.AppendNote(ctx, "bystander", owner)
	require.NoError(t, err)

	updated, err := ledger.UpdateNote(ctx, appended.Position, capturedRoot, "hello world", "rewrite", owner)
	require.NoError(t, err)

	record, err := NewReader(trace, nil).Decode(ctx, updated.Locator)
	require.NoError(t, err)
	require.Equal(t, "rewrite", record.Note)
}

// The optimistic retry loop a losing writer is expected to run.
func TestUpdateNoteRetryAfterConflict(t *testing.T) {
	t.Parallel()
	owner := ownerFromByte(10)
	ledger, _ := newTestLedger(t, owner)

	appended, err := ledger.AppendNote(ctx, "v1", owner)
	require.NoError(t, err)

	// Writer A wins the slot.
	_, err = ledger.UpdateNote(ctx, appended.Position, appended.Root, "v1", "v2", owner)
	require.NoError(t, err)

	// Writer B raced with the same captured state and loses.
	_, err = ledger.UpdateNote(ctx, appended.Position, appended.Root, "v1", "v2b", owner)
	require.ErrorIs(t, err, ErrStaleRootOrInvalidProof)

	// B refetches and retries against the new content.
	root, err := ledger.CurrentRoot(ctx)
	require.NoError(t, err)
	updated, err := ledger.UpdateNote(ctx, appended.Position, root, "v2", "v2b", owner)
	require.NoError(t, err)
	require.NotEmpty(t, updated.Locator)
}
