package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/backend/diskcache"
	"github.com/unkn0wn-root/assetcache/backend/file"
	"github.com/unkn0wn-root/assetcache/backend/httpsrc"
	"github.com/unkn0wn-root/assetcache/backend/kvcache"
	"github.com/unkn0wn-root/assetcache/backend/memcache"
	"github.com/unkn0wn-root/assetcache/backend/zipfile"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/genstore"
	"github.com/unkn0wn-root/assetcache/provider/bigcache"
	natsprov "github.com/unkn0wn-root/assetcache/provider/nats"
	"github.com/unkn0wn-root/assetcache/provider/redis"
	"github.com/unkn0wn-root/assetcache/provider/ristretto"
)

// BuildOptions carries the ambient dependencies shared by every backend.
type BuildOptions struct {
	Logger assetcache.Logger
	Hooks  assetcache.Hooks
}

// Stack is a built Manager plus direct handles to the backends that offer
// operations beyond the Backend interface.
type Stack[V any] struct {
	Manager *assetcache.Manager

	Mem  *memcache.Cache
	Disk *diskcache.Cache[V]
	File *file.Store[V]
	Zip  *zipfile.Archive[V]
	HTTP *httpsrc.Source[V]
}

// Build assembles a Manager for raw byte payloads.
func Build(ctx context.Context, cfg *Config, opts BuildOptions) (*Stack[[]byte], error) {
	return BuildFor[[]byte](ctx, cfg, codec.Bytes{}, opts)
}

// BuildFor assembles a Manager whose persistent backends store V payloads
// with c. On error every backend built so far is closed.
func BuildFor[V any](ctx context.Context, cfg *Config, c codec.Codec[V], opts BuildOptions) (_ *Stack[V], err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := assetcache.LoggerOrNop(opts.Logger)

	m, err := assetcache.New(assetcache.Options{
		Logger:     log,
		Hooks:      opts.Hooks,
		Strategy:   assetcache.DefaultStrategy{Order: assetcache.DefaultClassOrder, AllowOverride: cfg.Strategy.AllowOverride},
		MaxWorkers: cfg.Workers.Max,
	})
	if err != nil {
		return nil, err
	}
	s := &Stack[V]{Manager: m}
	defer func() {
		if err != nil {
			_ = m.Close(ctx)
		}
	}()

	register := func(b assetcache.Backend, prio int, class assetcache.Class) error {
		b.SetPriority(prio)
		return m.Register(b, class)
	}

	if cfg.MemCache.Enabled {
		s.Mem = memcache.New(memcache.Options{Grace: cfg.MemCache.Grace, Logger: log})
		if err := register(s.Mem, cfg.MemCache.Priority, assetcache.ClassMemoryCache); err != nil {
			return nil, err
		}
	}

	if cfg.Ristretto.Enabled {
		p, err := ristretto.New(ristretto.Config{
			NumCounters:  cfg.Ristretto.NumCounters,
			MaxCost:      cfg.Ristretto.MaxCost,
			BufferItems:  cfg.Ristretto.BufferItems,
			MaxItemBytes: cfg.Ristretto.MaxItemBytes,
			Sync:         true,
		})
		if err != nil {
			return nil, err
		}
		kv, err := kvcache.New(kvcache.Options[V]{
			Namespace: "ristretto", Provider: p, Codec: c, TTL: cfg.Ristretto.TTL, Logger: log,
		})
		if err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		if err := register(kv, cfg.Ristretto.Priority, assetcache.ClassMemoryCache); err != nil {
			_ = kv.Close(ctx)
			return nil, err
		}
	}

	if cfg.BigCache.Enabled {
		p, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:         cfg.BigCache.LifeWindow,
			HardMaxCacheSizeMB: cfg.BigCache.MaxSizeMB,
		})
		if err != nil {
			return nil, err
		}
		kv, err := kvcache.New(kvcache.Options[V]{Namespace: "bigcache", Provider: p, Codec: c, Logger: log})
		if err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		if err := register(kv, cfg.BigCache.Priority, assetcache.ClassMemoryCache); err != nil {
			_ = kv.Close(ctx)
			return nil, err
		}
	}

	if cfg.DiskCache.Enabled {
		dc := c
		if _, raw := any(c).(codec.Bytes); !raw && cfg.DiskCache.Codec != "" {
			if dc, err = codec.ByName[V](cfg.DiskCache.Codec); err != nil {
				return nil, fmt.Errorf("config: diskcache: %w", err)
			}
		}
		if dc, err = codec.Compressed(cfg.DiskCache.Compression, dc); err != nil {
			return nil, fmt.Errorf("config: diskcache: %w", err)
		}
		s.Disk, err = diskcache.New(diskcache.Options[V]{
			Dir:            cfg.DiskCache.Directory,
			Codec:          dc,
			NotifyInterval: cfg.DiskCache.NotifyInterval,
			Logger:         log,
		})
		if err != nil {
			return nil, err
		}
		if err := register(s.Disk, cfg.DiskCache.Priority, assetcache.ClassDiskCache); err != nil {
			return nil, err
		}
	}

	if cfg.Redis.Enabled {
		p, err := redis.Dial(ctx, redis.DialOptions{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxItemBytes: cfg.Redis.MaxItemBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("config: redis: %w", err)
		}
		rc, err := codec.Compressed(cfg.Redis.Compression, c)
		if err != nil {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("config: redis: %w", err)
		}
		gens := genstore.NewRedis(genstore.RedisConfig{
			Client:    p.Client(),
			Namespace: cfg.Redis.Namespace,
			TTL:       cfg.Redis.TTL,
		})
		kv, err := kvcache.New(kvcache.Options[V]{
			Namespace: cfg.Redis.Namespace,
			Provider:  p,
			Codec:     rc,
			GenStore:  gens,
			TTL:       cfg.Redis.TTL,
			Name:      "redis(" + cfg.Redis.Addr + ")",
			Logger:    log,
		})
		if err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		if err := register(kv, cfg.Redis.Priority, assetcache.ClassRemoteCache); err != nil {
			_ = kv.Close(ctx)
			return nil, err
		}
	}

	if cfg.NATS.Enabled {
		if err := buildNATS(ctx, cfg.NATS, c, log, register); err != nil {
			return nil, err
		}
	}

	if cfg.File.Enabled {
		s.File, err = file.New(file.Options[V]{
			Dir: cfg.File.Directory, Codec: c, NotifyInterval: cfg.File.NotifyInterval, Logger: log,
		})
		if err != nil {
			return nil, err
		}
		if err := register(s.File, cfg.File.Priority, assetcache.ClassFileOrigin); err != nil {
			return nil, err
		}
	}

	if cfg.Zip.Enabled {
		s.Zip, err = zipfile.New(zipfile.Options[V]{
			Path: cfg.Zip.Path, Codec: c, NotifyInterval: cfg.Zip.NotifyInterval, Logger: log,
		})
		if err != nil {
			return nil, err
		}
		if err := register(s.Zip, cfg.Zip.Priority, assetcache.ClassArchiveOrigin); err != nil {
			return nil, err
		}
	}

	if cfg.HTTP.Enabled {
		s.HTTP, err = httpsrc.New(ctx, httpsrc.Options[V]{
			URL:            cfg.HTTP.URL,
			Codec:          c,
			Timeout:        cfg.HTTP.Timeout,
			NotifyInterval: cfg.HTTP.NotifyInterval,
			Logger:         log,
		})
		if err != nil {
			return nil, err
		}
		if err := register(s.HTTP, cfg.HTTP.Priority, assetcache.ClassNetworkOrigin); err != nil {
			return nil, err
		}
	}

	if len(m.Backends()) == 0 {
		return nil, errors.New("config: no backend enabled")
	}
	log.Info("backend stack built", assetcache.Fields{"backends": len(m.Backends())})
	return s, nil
}

func buildNATS[V any](ctx context.Context, n NATS, c codec.Codec[V], log assetcache.Logger, register func(assetcache.Backend, int, assetcache.Class) error) error {
	nc, err := codec.Compressed(n.Compression, c)
	if err != nil {
		return fmt.Errorf("config: nats: %w", err)
	}
	p, err := natsprov.Dial(ctx, natsprov.DialOptions{
		URL:          n.URL,
		Bucket:       n.Bucket,
		TTL:          n.TTL,
		Replicas:     n.Replicas,
		MaxItemBytes: n.MaxItemBytes,
	})
	if err != nil {
		return fmt.Errorf("config: nats: %w", err)
	}
	gb, err := natsprov.OpenBucket(ctx, p.Conn(), jetstream.KeyValueConfig{
		Bucket:   n.Bucket + "-gen",
		TTL:      n.TTL,
		Replicas: n.Replicas,
	})
	if err != nil {
		_ = p.Close(ctx)
		return fmt.Errorf("config: nats: %w", err)
	}
	kv, err := kvcache.New(kvcache.Options[V]{
		Namespace: n.Namespace,
		Provider:  p,
		Codec:     nc,
		GenStore:  genstore.NewNATS(gb, n.Namespace),
		Name:      "nats(" + n.Bucket + ")",
		Logger:    log,
	})
	if err != nil {
		_ = p.Close(ctx)
		return err
	}
	if err := register(kv, n.Priority, assetcache.ClassRemoteCache); err != nil {
		_ = kv.Close(ctx)
		return err
	}
	return nil
}
