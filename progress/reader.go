// Package progress wraps backend streams and reports completion ratios to an
// assetcache.Listener from the goroutine that performs the read.
package progress

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/unkn0wn-root/assetcache"
)

// approxScale shapes the synthesized ratio for streams of unknown or exceeded
// length: n bytes map to n/(n+approxScale).
const approxScale = 64 << 10

type Option func(*Reader)

// WithInterval sets the tick interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// Reader counts down the bytes of an asset stream and, at most once per tick,
// calls NotifyPartial with the completion ratio. Ticks are polled inside Read,
// so no goroutine is started and every NotifyPartial precedes the Notify that
// the owning backend sends after the last Read.
//
// When the listener returns Cancel the reader aborts: the underlying stream is
// closed and every later Read returns io.EOF.
type Reader struct {
	id       string
	length   int64
	rc       io.ReadCloser
	l        assetcache.Listener
	interval time.Duration

	ticker    *time.Ticker
	remaining int64
	read      int64
	last      float64
	done      bool
	aborted   bool
	closeOnce sync.Once
	closeErr  error
}

var _ io.ReadCloser = (*Reader)(nil)

// NewReader wraps rc. length <= 0 means unknown. A nil listener disables
// notification; the reader then only forwards bytes.
func NewReader(id string, length int64, rc io.ReadCloser, l assetcache.Listener, opts ...Option) *Reader {
	r := &Reader{
		id:        id,
		length:    length,
		rc:        rc,
		l:         l,
		interval:  assetcache.DefaultNotifyInterval,
		remaining: max(length, 0),
	}
	for _, o := range opts {
		o(r)
	}
	if l != nil {
		r.ticker = time.NewTicker(r.interval)
	}
	return r
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if r.tick() {
		return 0, io.EOF
	}
	n, err := r.rc.Read(p)
	r.remaining -= int64(n)
	r.read += int64(n)
	if err == io.EOF {
		r.finish()
	}
	return n, err
}

// Close stops notification and closes the underlying stream.
func (r *Reader) Close() error {
	r.finish()
	r.closeOnce.Do(func() { r.closeErr = r.rc.Close() })
	return r.closeErr
}

// Aborted reports whether the listener cancelled the fetch.
func (r *Reader) Aborted() bool { return r.aborted }

// Remaining is the declared length minus the bytes read so far. It goes
// negative when the stream is longer than declared.
func (r *Reader) Remaining() int64 { return r.remaining }

// Ratio is the completion ratio as it would be reported now.
func (r *Reader) Ratio() float64 {
	var ratio float64
	switch {
	case r.length > 0 && r.remaining >= 0:
		ratio = float64(r.length-r.remaining) / float64(r.length)
		ratio = min(max(ratio, 0), 1)
	default:
		// best effort only: the real size is unknown or already exceeded
		n := r.read
		if r.length > 0 {
			n = -r.remaining
		}
		ratio = float64(n) / float64(n+approxScale)
	}
	return max(ratio, r.last)
}

// tick notifies the listener when the ticker fired and reports whether the
// listener cancelled.
func (r *Reader) tick() bool {
	if r.ticker == nil {
		return false
	}
	select {
	case <-r.ticker.C:
	default:
		return false
	}
	ratio := r.Ratio()
	r.last = ratio
	if r.l.NotifyPartial(r.id, ratio) == assetcache.Cancel {
		r.aborted = true
		_ = r.Close()
		return true
	}
	return false
}

func (r *Reader) finish() {
	if r.done {
		return
	}
	r.done = true
	if r.ticker != nil {
		r.ticker.Stop()
	}
}

// ReadAll drains rc through a Reader and closes it. aborted is true when the
// listener cancelled; data is then incomplete and must be discarded.
func ReadAll(id string, length int64, rc io.ReadCloser, l assetcache.Listener, opts ...Option) (data []byte, aborted bool, err error) {
	r := NewReader(id, length, rc, l, opts...)
	defer r.Close()

	if length > 0 {
		buf := bytes.NewBuffer(make([]byte, 0, length))
		_, err = buf.ReadFrom(r)
		data = buf.Bytes()
	} else {
		data, err = io.ReadAll(r)
	}
	if r.Aborted() {
		return nil, true, nil
	}
	return data, false, err
}
