package util

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashName returns a deterministic, filesystem-safe name for an asset id:
// the hex BLAKE3-256 digest of the id.
func HashName(id string) string {
	sum := blake3.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// StorageKey isolates ids of one namespace inside a shared byte store.
func StorageKey(namespace, id string) string {
	return "asset:" + namespace + ":" + id
}
