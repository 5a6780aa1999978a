package cnotes

import "context"

// Proof places a leaf value at a position under a root without
// revealing the whole tree.  Siblings holds, leaf to root, the sibling
// node hash at each level of the position's path; its length always
// equals the tree depth.
type Proof struct {
	Siblings [][32]byte
}

// CommitmentTree is the concurrent Merkle tree capability the ledger
// is built on.  Implementations serialize all mutations internally;
// every method is a single atomic call, and callers coordinate only
// through roots and proofs.
type CommitmentTree interface {
	// Append writes the leaf into the next unused slot, left to right,
	// and returns its position.  Fails with ErrTreeFull once all
	// 2^depth slots are used.
	Append(ctx context.Context, leaf LeafCommitment) (uint32, error)

	// Replace atomically swaps the leaf at position, provided root is
	// still inside the retained change-log window and proof validates
	// oldLeaf at position against it.  Writes against
	// recent-but-superseded roots succeed as long as no later mutation
	// touched the same position; otherwise, and on any validation
	// failure, ErrStaleRootOrInvalidProof.
	Replace(ctx context.Context, position uint32, oldLeaf, newLeaf LeafCommitment, proof Proof, root Root) (Root, error)

	// CurrentRoot returns the latest root, the one a caller should
	// present to a subsequent Replace.
	CurrentRoot(ctx context.Context) (Root, error)

	// GenerateProof returns a proof for the leaf at position, valid
	// against the root current at the time of the call.
	GenerateProof(ctx context.Context, position uint32) (Proof, error)
}
