package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/unkn0wn-root/assetcache/internal/util"
)

// KVBucket is the part of jetstream.KeyValue the NATS store needs.
type KVBucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}

var _ KVBucket = (jetstream.KeyValue)(nil)

// NATS keeps generations in a JetStream key/value bucket. Bump is a
// compare-and-set on the entry revision, retried on conflict, so replicas
// never lose an increment.
type NATS struct {
	b   KVBucket
	ns  string
	try int
}

var _ GenStore = (*NATS)(nil)

// NewNATS returns a store writing under namespace ns. Counters expire with
// the bucket's TTL.
func NewNATS(b KVBucket, ns string) *NATS {
	return &NATS{b: b, ns: ns, try: 16}
}

func (s *NATS) key(id string) string { return util.HashName("assetgen:" + s.ns + ":" + id) }

func (s *NATS) Snapshot(ctx context.Context, id string) (uint64, error) {
	gen, _, err := s.read(ctx, s.key(id))
	return gen, err
}

func (s *NATS) read(ctx context.Context, k string) (gen, rev uint64, err error) {
	e, err := s.b.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("genstore: nats get: %w", err)
	}
	gen, err = strconv.ParseUint(string(e.Value()), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("genstore: nats value %q: %w", e.Value(), err)
	}
	return gen, e.Revision(), nil
}

func (s *NATS) Bump(ctx context.Context, id string) (uint64, error) {
	k := s.key(id)
	for range s.try {
		gen, rev, err := s.read(ctx, k)
		if err != nil {
			return 0, err
		}
		next := []byte(strconv.FormatUint(gen+1, 10))
		if rev == 0 {
			_, err = s.b.Create(ctx, k, next)
		} else {
			_, err = s.b.Update(ctx, k, next, rev)
		}
		if err == nil {
			return gen + 1, nil
		}
		if !conflict(err) {
			return 0, fmt.Errorf("genstore: nats bump: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("genstore: nats bump %s: too much contention", id)
}

func conflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Cleanup is a no-op; the bucket TTL expires idle counters.
func (s *NATS) Cleanup(time.Duration) {}

// Close is a no-op; the connection belongs to the caller.
func (s *NATS) Close(context.Context) error { return nil }
