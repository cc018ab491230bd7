package cli

import (
	"fmt"
	"sync"

	"github.com/unkn0wn-root/assetcache"
)

// copyFailures records CopyFailed events. The Manager reports a failure
// before it notifies the copy listener for the same id, so the listener can
// take it.
type copyFailures struct {
	assetcache.NopHooks

	mu      sync.Mutex
	total   int
	pending map[string]error
}

func newCopyFailures() *copyFailures {
	return &copyFailures{pending: make(map[string]error)}
}

func (f *copyFailures) CopyFailed(id, reason string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total++
	if err != nil {
		f.pending[id] = fmt.Errorf("%s: %w", reason, err)
	} else {
		f.pending[id] = fmt.Errorf("%s", reason)
	}
}

// take returns and forgets the failure recorded for id, if any.
func (f *copyFailures) take(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.pending[id]
	delete(f.pending, id)
	return err
}

func (f *copyFailures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}
