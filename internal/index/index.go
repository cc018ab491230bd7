// Package index is the id → local name table kept next to origin data.
//
// The on-disk form is one "key=value" pair per line. Lines starting with '#'
// or '!' are comments. '=', ':', '\' and newlines inside keys or values are
// backslash-escaped.
package index

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/unkn0wn-root/assetcache/internal/util"
)

type Index struct {
	mu sync.RWMutex
	m  map[string]string
}

func New() *Index { return &Index{m: make(map[string]string)} }

// Read parses an index.
func Read(r io.Reader) (*Index, error) {
	ix := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimLeft(sc.Text(), " \t")
		if s == "" || s[0] == '#' || s[0] == '!' {
			continue
		}
		k, v, ok := split(s)
		if !ok {
			return nil, fmt.Errorf("index: line %d: missing separator", line)
		}
		ix.m[k] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return ix, nil
}

// Load reads the index at path. A missing file is an empty index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func (ix *Index) Get(key string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	v, ok := ix.m[key]
	return v, ok
}

func (ix *Index) Has(key string) bool {
	_, ok := ix.Get(key)
	return ok
}

func (ix *Index) Set(key, value string) {
	ix.mu.Lock()
	ix.m[key] = value
	ix.mu.Unlock()
}

// Delete removes key and returns its former value.
func (ix *Index) Delete(key string) (string, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	v, ok := ix.m[key]
	delete(ix.m, key)
	return v, ok
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.m)
}

// Keys returns the keys in sorted order.
func (ix *Index) Keys() []string {
	ix.mu.RLock()
	keys := make([]string, 0, len(ix.m))
	for k := range ix.m {
		keys = append(keys, k)
	}
	ix.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// WriteTo writes the index sorted by key.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	keys := make([]string, 0, len(ix.m))
	for k := range ix.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	bw := bufio.NewWriter(w)
	var n int64
	for _, k := range keys {
		c, err := bw.WriteString(escape(k) + "=" + escape(ix.m[k]) + "\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Save writes the index to path atomically.
func (ix *Index) Save(path string) error {
	var buf bytes.Buffer
	if _, err := ix.WriteTo(&buf); err != nil {
		return err
	}
	return util.WriteFileAtomic(filepath.Dir(path), path, buf.Bytes())
}

// split cuts s at the first unescaped '=' or ':' and unescapes both halves.
func split(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '=', ':':
			return strings.TrimRight(unescape(s[:i]), " \t"), unescape(strings.TrimLeft(s[i+1:], " \t")), true
		}
	}
	return "", "", false
}

var escaper = strings.NewReplacer(`\`, `\\`, "=", `\=`, ":", `\:`, "\n", `\n`)

func escape(s string) string { return escaper.Replace(s) }

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
