package genstore

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	gen    uint64
	bumped  time.Time
}

// Local keeps generations for a single process; replicas sharing a Local
// value (as in tests) see each other's removals. Counters not bumped within
// the retention window are dropped by a janitor goroutine and read as 0
// again, so retention should exceed the longest cache TTL.
type Local struct {
	mu       sync.RWMutex
	counters map[string]counter

	retention time.Duration
	done      chan struct{}
	stopped   sync.WaitGroup
	closeOnce sync.Once
}

var _ GenStore = (*Local)(nil)

// NewLocal returns a store. The janitor runs every interval when both
// interval and retention are positive.
func NewLocal(interval, retention time.Duration) *Local {
	s := &Local{counters: make(map[string]counter), retention: retention}
	if interval > 0 && retention > 0 {
		s.done = make(chan struct{})
		s.stopped.Add(1)
		go s.janitor(interval)
	}
	return s
}

func (s *Local) janitor(interval time.Duration) {
	defer s.stopped.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(s.retention)
		case <-s.done:
			return
		}
	}
}

func (s *Local) Snapshot(_ context.Context, id string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[id].gen, nil
}

func (s *Local) Bump(_ context.Context, id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[id]
	c.gen++
	c.bumped = time.Now()
	s.counters[id] = c
	return c.gen, nil
}

// Cleanup drops counters last bumped before now-retention.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.counters {
		if c.bumped.Before(cutoff) {
			delete(s.counters, id)
		}
	}
}

// Len is the number of tracked counters.
func (s *Local) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// Close stops the janitor. It is safe to call more than once.
func (s *Local) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
			s.stopped.Wait()
		}
	})
	return nil
}
