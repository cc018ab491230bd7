// Package config loads the YAML description of a backend stack and builds
// the Manager it describes.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/assetcache/codec"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Backend struct {
	Enabled  bool `yaml:"enabled"`
	Priority int  `yaml:"priority"`
}

type MemCache struct {
	Backend `yaml:",inline"`
	Grace   time.Duration `yaml:"grace"`
}

type Ristretto struct {
	Backend     `yaml:",inline"`
	NumCounters int64         `yaml:"numCounters"`
	MaxCost     int64         `yaml:"maxCost"`
	BufferItems int64         `yaml:"bufferItems"`
	TTL         time.Duration `yaml:"ttl"`
	// MaxItemBytes refuses assets whose encoded form is larger; 0 disables.
	MaxItemBytes int `yaml:"maxItemBytes"`
}

type BigCache struct {
	Backend    `yaml:",inline"`
	LifeWindow time.Duration `yaml:"lifeWindow"`
	MaxSizeMB  int           `yaml:"maxSizeMB"`
}

type DiskCache struct {
	Backend        `yaml:",inline"`
	Directory      string        `yaml:"directory"`
	NotifyInterval time.Duration `yaml:"notifyInterval"`
	// Codec names the payload codec for structured payloads (json, cbor,
	// msgpack). Byte payloads are stored as is.
	Codec string `yaml:"codec"`
	// Compression is none, lz4 or zstd.
	Compression string `yaml:"compression"`
	// MaxBytes is the default prune target; 0 disables pruning from the CLI.
	MaxBytes int64 `yaml:"maxBytes"`
}

type Redis struct {
	Backend   `yaml:",inline"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	Namespace    string        `yaml:"namespace"`
	TTL          time.Duration `yaml:"ttl"`
	MaxItemBytes int           `yaml:"maxItemBytes"`
	Compression  string        `yaml:"compression"`
}

// NATS is a JetStream key/value bucket shared by every connected process.
// Generations live in a sibling bucket named <bucket>-gen.
type NATS struct {
	Backend      `yaml:",inline"`
	URL          string        `yaml:"url"`
	Bucket       string        `yaml:"bucket"`
	Namespace    string        `yaml:"namespace"`
	TTL          time.Duration `yaml:"ttl"`
	Replicas     int           `yaml:"replicas"`
	MaxItemBytes int           `yaml:"maxItemBytes"`
	Compression  string        `yaml:"compression"`
}

type File struct {
	Backend        `yaml:",inline"`
	Directory      string        `yaml:"directory"`
	NotifyInterval time.Duration `yaml:"notifyInterval"`
}

type Zip struct {
	Backend        `yaml:",inline"`
	Path           string        `yaml:"path"`
	NotifyInterval time.Duration `yaml:"notifyInterval"`
}

type HTTP struct {
	Backend        `yaml:",inline"`
	URL            string        `yaml:"url"`
	NotifyInterval time.Duration `yaml:"notifyInterval"`
	Timeout        time.Duration `yaml:"timeout"`
}

type Strategy struct {
	AllowOverride bool `yaml:"allowOverride"`
}

type Workers struct {
	Max int `yaml:"max"`
}

type Config struct {
	MemCache  MemCache  `yaml:"memcache"`
	Ristretto Ristretto `yaml:"ristretto"`
	BigCache  BigCache  `yaml:"bigcache"`
	DiskCache DiskCache `yaml:"diskcache"`
	Redis     Redis     `yaml:"redis"`
	NATS      NATS      `yaml:"nats"`
	File      File      `yaml:"file"`
	Zip       Zip       `yaml:"zip"`
	HTTP      HTTP      `yaml:"http"`
	Strategy  Strategy  `yaml:"strategy"`
	Workers   Workers   `yaml:"workers"`
}

// Default returns the embedded baseline.
func Default() *Config {
	var c Config
	if err := decode(bytes.NewReader(defaultsYAML), &c); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return &c
}

// Load overlays the file at path onto the defaults. An empty path returns
// the defaults. The result is validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := c.Overlay(f); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Overlay decodes r onto c; keys absent from r keep their values.
func (c *Config) Overlay(r io.Reader) error {
	return decode(r, c)
}

func decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every missing required property of an enabled backend
// and every priority shared by two enabled backends.
func (c *Config) Validate() error {
	var errs []error
	req := func(enabled bool, section, key, v string) {
		if enabled && v == "" {
			errs = append(errs, fmt.Errorf("config: %s.%s is required", section, key))
		}
	}
	req(c.DiskCache.Enabled, "diskcache", "directory", c.DiskCache.Directory)
	req(c.Redis.Enabled, "redis", "addr", c.Redis.Addr)
	req(c.Redis.Enabled, "redis", "namespace", c.Redis.Namespace)
	req(c.NATS.Enabled, "nats", "url", c.NATS.URL)
	req(c.NATS.Enabled, "nats", "bucket", c.NATS.Bucket)
	req(c.File.Enabled, "file", "directory", c.File.Directory)
	req(c.Zip.Enabled, "zip", "path", c.Zip.Path)
	req(c.HTTP.Enabled, "http", "url", c.HTTP.URL)

	if c.Ristretto.Enabled && (c.Ristretto.NumCounters <= 0 || c.Ristretto.MaxCost <= 0 || c.Ristretto.BufferItems <= 0) {
		errs = append(errs, errors.New("config: ristretto.numCounters, maxCost and bufferItems must be positive"))
	}
	if c.BigCache.Enabled && c.BigCache.LifeWindow <= 0 {
		errs = append(errs, errors.New("config: bigcache.lifeWindow must be positive"))
	}
	for _, cp := range []struct{ section, name string }{
		{"diskcache", c.DiskCache.Compression},
		{"redis", c.Redis.Compression},
		{"nats", c.NATS.Compression},
	} {
		switch cp.name {
		case "", codec.CompressNone, codec.CompressLZ4, codec.CompressZstd:
		default:
			errs = append(errs, fmt.Errorf("config: %s.compression %q is not one of none, lz4, zstd", cp.section, cp.name))
		}
	}
	if c.Workers.Max < 0 {
		errs = append(errs, errors.New("config: workers.max must be >= 0"))
	}

	seen := make(map[int]string)
	for _, s := range c.sections() {
		if !s.Enabled {
			continue
		}
		if other, dup := seen[s.Priority]; dup {
			errs = append(errs, fmt.Errorf("config: %s and %s both have priority %d", other, s.name, s.Priority))
			continue
		}
		seen[s.Priority] = s.name
	}
	return errors.Join(errs...)
}

type section struct {
	name string
	Backend
}

func (c *Config) sections() []section {
	return []section{
		{"memcache", c.MemCache.Backend},
		{"ristretto", c.Ristretto.Backend},
		{"bigcache", c.BigCache.Backend},
		{"diskcache", c.DiskCache.Backend},
		{"redis", c.Redis.Backend},
		{"nats", c.NATS.Backend},
		{"file", c.File.Backend},
		{"zip", c.Zip.Backend},
		{"http", c.HTTP.Backend},
	}
}
