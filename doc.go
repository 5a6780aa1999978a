/*
Package cnotes provides a compressed, append-and-update ledger of short
text notes.  Each note is bound to an owning identity, but primary
storage only ever holds a fixed-size Merkle root over the notes'
commitments; the full plaintext is recoverable solely from an
append-only trace of emitted log records.  This lets a
storage-constrained ledger hold an unbounded number of variable-length
notes while its durable footprint stays logarithmic in the note count.

Structure

A Ledger orchestrates three collaborators: a leaf codec that hashes
(note, owner) pairs into 32-byte commitments with Keccak-256, a
CommitmentTree that stores the commitments and tolerates a bounded
window of concurrent writers, and a TraceLog that receives one framed
NoteLog record per mutation.  A Reader later scans the trace, decodes
candidate frames, and verifies each record by recomputing its leaf
commitment.

Concurrency

The tree keeps a ring buffer of its B most recent roots and change
paths.  Writers present the root they observed; a root still inside the
window is accepted even if other writers have advanced the tree since,
as long as the writes touch disjoint leaf positions.  Two writers
racing on the same position are serialized by the tree: the loser's
proof no longer validates and it must refetch CurrentRoot and retry.
This is optimistic concurrency, not locking, and retry policy belongs
to the caller.

Reconstruction

Notes are never stored in full.  A mutation's locator (analogous to a
transaction identifier) is the out-of-band key into the trace; Decode
scans that trace entry's candidate frames, most recent first, and
returns the first record that both decodes under the fixed binary
layout and passes integrity verification.  The ledger's current content
at a position is the latest verified record targeting that position.
*/
package cnotes
