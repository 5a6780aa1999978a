package cnotes

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxNoteSize is the largest note text a single log record may carry.
// The bound comes from the reference transport's ~1232-byte frame
// budget less the 32-byte commitment, 32-byte owner and framing;
// targeting a different transport means recomputing it.
const MaxNoteSize = 917

// noteLogFixedSize is the size of the fixed-layout fields preceding
// the note text: commitment, owner, u32 length prefix.
const noteLogFixedSize = 32 + 32 + 4

// NoteLog is one emitted log record: the sole durable pairing of a
// leaf commitment with the plaintext that produced it.  Records are
// append-only and never mutated once emitted.
type NoteLog struct {
	// LeafNode is the commitment written to the tree for this mutation.
	LeafNode LeafCommitment
	// Owner is the identity the note is bound to.
	Owner Owner
	// Note is the plaintext content.
	Note string
}

// Marshal encodes the record in its fixed wire layout: 32-byte leaf
// commitment, 32-byte owner, then the note as a little-endian u32
// length followed by that many bytes, no terminator.  Consumers decode
// exactly this field order; the layout is versionless.
func (r *NoteLog) Marshal() []byte {
	buf := make([]byte, 0, noteLogFixedSize+len(r.Note))
	buf = append(buf, r.LeafNode[:]...)
	buf = append(buf, r.Owner[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Note)))
	return append(buf, r.Note...)
}

// UnmarshalNoteLog decodes a single record from buf.  Decoding is
// strict: short buffers, lengths that disagree with the remaining
// bytes, and trailing garbage are all rejected, so that a frame either
// round-trips exactly or is not a record of this schema.
func UnmarshalNoteLog(buf []byte) (NoteLog, error) {
	var r NoteLog
	if len(buf) < noteLogFixedSize {
		return r, fmt.Errorf("frame too short for note log: %d bytes", len(buf))
	}
	copy(r.LeafNode[:], buf[:32])
	copy(r.Owner[:], buf[32:64])
	n := binary.LittleEndian.Uint32(buf[64:68])
	rest := buf[noteLogFixedSize:]
	if uint32(len(rest)) != n {
		return NoteLog{}, fmt.Errorf("note length %d disagrees with frame body of %d bytes", n, len(rest))
	}
	r.Note = string(rest)
	return r, nil
}

// Verify recomputes the record's leaf commitment from its content and
// owner and compares byte for byte.  A mismatch is
// ErrIntegrityViolation: corruption, or an emitter that does not
// conform to the leaf codec.
func (r *NoteLog) Verify() error {
	want := CommitLeaf(r.Note, r.Owner)
	if !bytes.Equal(want[:], r.LeafNode[:]) {
		return fmt.Errorf("commitment %s does not match content: %w", r.LeafNode, ErrIntegrityViolation)
	}
	return nil
}
