package assetcache

import "sync"

// Progress is returned from NotifyPartial to continue or abort a fetch.
type Progress int

const (
	Continue Progress = iota
	Cancel
)

func (p Progress) String() string {
	if p == Cancel {
		return "cancel"
	}
	return "continue"
}

// Listener receives progress and completion for one asset request.
//
// NotifyPartial may be called zero or more times with a ratio in [0,1] and always
// precedes the single terminal Notify. Returning Cancel aborts the fetch; Notify is
// then called with a nil asset.
type Listener interface {
	Notify(id string, a *Asset)
	NotifyPartial(id string, ratio float64) Progress
}

// ListenerFuncs adapts plain functions. Nil fields are no-ops.
type ListenerFuncs struct {
	OnNotify  func(id string, a *Asset)
	OnPartial func(id string, ratio float64) Progress
}

var _ Listener = ListenerFuncs{}

func (l ListenerFuncs) Notify(id string, a *Asset) {
	if l.OnNotify != nil {
		l.OnNotify(id, a)
	}
}

func (l ListenerFuncs) NotifyPartial(id string, ratio float64) Progress {
	if l.OnPartial != nil {
		return l.OnPartial(id, ratio)
	}
	return Continue
}

// NotifyOnce wraps l so that Notify reaches it at most once and NotifyPartial is
// dropped after completion. Backends use it to keep the terminal-callback
// contract on every exit path:
//
//	l = assetcache.NotifyOnce(l)
//	defer func() { l.Notify(id, result) }()
//
// A nil listener stays nil.
func NotifyOnce(l Listener) Listener {
	if l == nil {
		return nil
	}
	if o, ok := l.(*onceListener); ok {
		return o
	}
	return &onceListener{inner: l}
}

type onceListener struct {
	inner Listener
	mu    sync.Mutex
	done  bool
}

func (o *onceListener) Notify(id string, a *Asset) {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}
	o.done = true
	o.mu.Unlock()
	o.inner.Notify(id, a)
}

func (o *onceListener) NotifyPartial(id string, ratio float64) Progress {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done {
		return Cancel
	}
	return o.inner.NotifyPartial(id, ratio)
}

// Notified reports whether l is a NotifyOnce wrapper that already delivered Notify.
func Notified(l Listener) bool {
	o, ok := l.(*onceListener)
	if !ok {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}
