package memcache

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/assetcache"
)

// pinSet holds strong references for a bounded time. A pin taken by Has keeps
// the asset reachable until the following Get consumes it or the grace window
// elapses, whichever comes first.
type pinSet struct {
	mu    sync.Mutex
	grace time.Duration
	pins  map[string]*pin
}

type pin struct {
	a *assetcache.Asset
	t *time.Timer
}

func newPinSet(grace time.Duration) *pinSet {
	return &pinSet{grace: grace, pins: make(map[string]*pin)}
}

// acquire pins a under id, replacing an older pin for the same id.
func (s *pinSet) acquire(id string, a *assetcache.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.pins[id]; ok {
		old.t.Stop()
	}
	p := &pin{a: a}
	p.t = time.AfterFunc(s.grace, func() { s.expire(id, p) })
	s.pins[id] = p
}

// release drops the pin for id and returns the pinned asset, if any.
func (s *pinSet) release(id string) *assetcache.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pins[id]
	if !ok {
		return nil
	}
	p.t.Stop()
	delete(s.pins, id)
	return p.a
}

func (s *pinSet) expire(id string, p *pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// a newer pin may have replaced p
	if s.pins[id] == p {
		delete(s.pins, id)
	}
}

func (s *pinSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pins {
		p.t.Stop()
	}
	clear(s.pins)
}

func (s *pinSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pins)
}
