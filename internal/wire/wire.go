package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version  byte = 1
	kindItem byte = 1

	maxFormat = 0xFF
	hdr       = 4 + 1 + 1 + 8 + 1 // magic | ver | kind | gen | flen
)

var (
	ErrCorrupt = errors.New("assetcache: corrupt entry")
	ErrFormat  = errors.New("assetcache: format hint longer than 255 bytes")
	magic4     = [...]byte{'A', 'S', 'E', 'T'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is one stored asset.
type Entry struct {
	Gen     uint64
	Format  string
	Payload []byte
}

// Encode frames e as
//
//	magic(4) | ver(1) | kind(1) | gen(u64 be) | flen(u8) | format(flen) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) ([]byte, error) {
	if len(e.Format) > maxFormat {
		return nil, ErrFormat
	}
	var buf bytes.Buffer
	buf.Grow(hdr + len(e.Format) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindItem)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])

	buf.WriteByte(byte(len(e.Format)))
	buf.WriteString(e.Format)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses a frame written by Encode. The payload aliases b.
// Trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindItem {
		return Entry{}, ErrCorrupt
	}

	off := 6
	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	flen := int(b[off])
	off++
	if flen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	format := string(b[off : off+flen])
	off += flen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{Gen: gen, Format: format, Payload: b[off : off+vlen]}, nil
}
