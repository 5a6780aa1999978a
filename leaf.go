package cnotes

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Owner is the 32-byte identity a note is bound to.
type Owner [32]byte

// LeafCommitment is the fixed-size hash standing in for a note's
// content plus owner in the commitment tree.
type LeafCommitment [32]byte

// Root is a fixed-size summary of the tree's entire leaf set at a
// point in time.
type Root [32]byte

func (o Owner) String() string          { return hex.EncodeToString(o[:]) }
func (l LeafCommitment) String() string { return hex.EncodeToString(l[:]) }
func (r Root) String() string           { return hex.EncodeToString(r[:]) }

// CommitLeaf hashes a note and its owner into a leaf commitment:
// Keccak-256 over the note bytes immediately followed by the 32 owner
// bytes, no length prefix or separator.  The input ordering is part of
// the external contract; log consumers recompute this hash to verify
// authenticity, so it must be byte-identical across implementations.
// An empty note is valid and hashes the owner alone.
func CommitLeaf(note string, owner Owner) LeafCommitment {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(note))
	h.Write(owner[:])
	var l LeafCommitment
	copy(l[:], h.Sum(nil))
	return l
}

// hashNodes combines two child hashes into their parent, with the same
// hash the leaf codec uses so the whole tree stays on one primitive.
func hashNodes(left, right [32]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
