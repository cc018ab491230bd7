// Package redis adapts go-redis as a shared asset store, so several
// processes can serve each other's cached assets.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/assetcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	maxItem     int
}

var _ provider.Provider = (*Redis)(nil)

type Config struct {
	Client goredis.UniversalClient
	// CloseClient hands ownership of Client to the provider.
	CloseClient bool
	// MaxItemBytes refuses larger frames instead of shipping them over the
	// network. 0 disables.
	MaxItemBytes int
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, maxItem: cfg.MaxItemBytes}, nil
}

// DialOptions selects a single redis node.
type DialOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MaxItemBytes int
}

// Dial connects and verifies the node with PING. The returned provider owns
// its client.
func Dial(ctx context.Context, o DialOptions) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
		PoolSize: o.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis provider: ping %s: %w", o.Addr, err)
	}
	return &Redis{rdb: rdb, closeClient: true, maxItem: o.MaxItemBytes}, nil
}

// Client is the underlying client, shared with the redis generation store.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis provider: get: %w", err)
	}
	return b, true, nil
}

// Set ignores cost. A non-positive ttl stores without expiry.
func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if p.maxItem > 0 && len(value) > p.maxItem {
		return false, p.Del(ctx, key)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, fmt.Errorf("redis provider: set: %w", err)
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis provider: del: %w", err)
	}
	return nil
}

// Close releases the client only when the provider owns it. Repeated calls
// are no-ops.
func (p *Redis) Close(context.Context) error {
	if !p.closeClient {
		return nil
	}
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
