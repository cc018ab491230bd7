// Package workpool runs fire-and-forget tasks on goroutines owned by an
// errgroup. The pool is unbounded unless a limit is set.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("workpool: closed")

// PanicHandler receives a recovered task panic.
type PanicHandler func(v any)

type Pool struct {
	g       errgroup.Group
	mu      sync.RWMutex
	closed  bool
	onPanic PanicHandler
}

// New creates a pool. limit <= 0 means unbounded. With a limit, Go blocks the
// caller until a slot frees up.
func New(limit int, onPanic PanicHandler) *Pool {
	p := &Pool{onPanic: onPanic}
	if limit > 0 {
		p.g.SetLimit(limit)
	}
	return p
}

// Go schedules f. ctx is handed to f unchanged; cancelling it is f's business.
func (p *Pool) Go(ctx context.Context, f func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				if p.onPanic != nil {
					p.onPanic(r)
				}
				err = fmt.Errorf("workpool: task panic: %v", r)
			}
		}()
		f(ctx)
		return nil
	})
	return nil
}

// Wait blocks until every scheduled task finished.
func (p *Pool) Wait() { _ = p.g.Wait() }

// Close rejects new tasks and waits for running ones. Safe to call twice.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.Wait()
}
