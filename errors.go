package cnotes

import "errors"

// Errors surfaced by the ledger, tree and reader.  None are retried
// internally; retry-on-stale-root is a caller-side policy.
var (
	// ErrInvalidTreeParameters indicates a depth or buffer size outside
	// the supported range.
	ErrInvalidTreeParameters = errors.New("invalid tree parameters")

	// ErrAllocationFailed indicates underlying storage for a new ledger
	// could not be reserved.
	ErrAllocationFailed = errors.New("ledger allocation failed")

	// ErrTreeFull indicates all 2^depth leaf slots are in use.
	ErrTreeFull = errors.New("tree full")

	// ErrStaleRootOrInvalidProof indicates the presented root has aged
	// out of the change-log window, or the proof does not place the old
	// leaf at the given position, or a concurrent writer got to the same
	// position first.  The caller's remedy is to refetch CurrentRoot,
	// regenerate its proof, and retry.
	ErrStaleRootOrInvalidProof = errors.New("stale root or invalid proof")

	// ErrUnauthorizedOwner indicates the calling identity is not the
	// owner recorded for the note.
	ErrUnauthorizedOwner = errors.New("caller is not the note owner")

	// ErrPayloadTooLarge indicates the note text exceeds MaxNoteSize.
	ErrPayloadTooLarge = errors.New("note exceeds maximum payload size")

	// ErrLogNotFound indicates no candidate frame in a trace entry
	// decodes as a note log record.
	ErrLogNotFound = errors.New("no note log record found in trace")

	// ErrIntegrityViolation indicates a decoded record's leaf commitment
	// does not match the hash recomputed from its content: corruption or
	// a non-conforming emitter.  Never silently swallowed.
	ErrIntegrityViolation = errors.New("note log record failed integrity check")
)
