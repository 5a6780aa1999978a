package cnotes

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/minio/blake2b-simd"
)

// Persist is the interface for loading and storing opaque blobs, used
// for tree snapshots and flushed trace entries.  The given string name
// corresponds to content which is immutable once stored.
type Persist interface {
	// Store makes the given bytes accessible by the given name.
	Store(context.Context, string, []byte) error
	// Load retrieves the previously-stored bytes by the given name.
	Load(context.Context, string) ([]byte, error)
}

// contentAddress names a blob by its hash, so identical content
// dedupes and a link doubles as a version identifier.
func contentAddress(blob []byte) string {
	hashBytes := blake2b.Sum256(blob)
	return base64.RawURLEncoding.EncodeToString(hashBytes[:])
}

// storeBlob persists the blob under its content address and returns
// the link.
func storeBlob(ctx context.Context, persist Persist, blob []byte) (string, error) {
	link := contentAddress(blob)
	err := persist.Store(ctx, link, blob)
	if err != nil {
		return "", fmt.Errorf("persist store: %w", err)
	}
	return link, nil
}
