// Package nats stores asset frames in a NATS JetStream key/value bucket, so
// every process connected to the cluster shares one remote cache.
//
// JetStream keys are restricted to [-/_=.a-zA-Z0-9], so cache keys are
// hashed before they reach the bucket. Expiry is a property of the bucket
// (KeyValueConfig.TTL); the per-call ttl is ignored.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/unkn0wn-root/assetcache/internal/util"
	"github.com/unkn0wn-root/assetcache/provider"
)

// Bucket is the part of jetstream.KeyValue the provider needs.
type Bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

var _ Bucket = (jetstream.KeyValue)(nil)

type Config struct {
	Bucket Bucket
	// MaxItemBytes refuses larger frames; JetStream also enforces the
	// bucket's MaxValueSize. 0 disables the local check.
	MaxItemBytes int
}

type Provider struct {
	b       Bucket
	maxItem int
	conn    *natsgo.Conn // set when the provider dialed it
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.Bucket == nil {
		return nil, errors.New("nats provider: nil bucket")
	}
	return &Provider{b: cfg.Bucket, maxItem: cfg.MaxItemBytes}, nil
}

// DialOptions describe the connection and the bucket Dial opens.
type DialOptions struct {
	URL          string
	Bucket       string
	TTL          time.Duration
	Replicas     int
	MaxItemBytes int
}

// Dial connects to url and opens the bucket, creating it when missing. The
// provider owns the connection.
func Dial(ctx context.Context, o DialOptions) (*Provider, error) {
	conn, err := natsgo.Connect(o.URL, natsgo.Name("assetcache"))
	if err != nil {
		return nil, fmt.Errorf("nats provider: connect %s: %w", o.URL, err)
	}
	kv, err := OpenBucket(ctx, conn, jetstream.KeyValueConfig{
		Bucket:       o.Bucket,
		Description:  "assetcache frames",
		TTL:          o.TTL,
		Replicas:     o.Replicas,
		MaxValueSize: int32(o.MaxItemBytes),
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Provider{b: kv, maxItem: o.MaxItemBytes, conn: conn}, nil
}

// OpenBucket returns the bucket named in cfg, creating it on first use.
// Concurrent creators race benignly: the loser opens the winner's bucket.
func OpenBucket(ctx context.Context, conn *natsgo.Conn, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("nats provider: jetstream: %w", err)
	}
	if kv, err := js.KeyValue(ctx, cfg.Bucket); err == nil {
		return kv, nil
	}
	kv, err := js.CreateKeyValue(ctx, cfg)
	if errors.Is(err, jetstream.ErrBucketExists) {
		kv, err = js.KeyValue(ctx, cfg.Bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("nats provider: bucket %s: %w", cfg.Bucket, err)
	}
	return kv, nil
}

// Key maps a cache key onto the JetStream key alphabet.
func Key(k string) string { return util.HashName(k) }

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := p.b.Get(ctx, Key(key))
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("nats provider: get: %w", err)
	}
	return e.Value(), true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if p.maxItem > 0 && len(value) > p.maxItem {
		return false, p.Del(ctx, key)
	}
	if _, err := p.b.Put(ctx, Key(key), value); err != nil {
		return false, fmt.Errorf("nats provider: put: %w", err)
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	err := p.b.Delete(ctx, Key(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats provider: delete: %w", err)
	}
	return nil
}

// Conn is the connection opened by Dial, or nil.
func (p *Provider) Conn() *natsgo.Conn { return p.conn }

// Close drains a connection opened by Dial.
func (p *Provider) Close(context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}
