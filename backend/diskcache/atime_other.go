//go:build !linux && !darwin

package diskcache

import (
	"io/fs"
	"time"
)

// accessTime falls back to the modification time; Prune then evicts by
// write order.
func accessTime(_ string, fi fs.FileInfo) time.Time {
	return fi.ModTime()
}
