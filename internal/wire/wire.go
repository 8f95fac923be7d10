package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1

	// MaxTagLen is the longest tag the envelope's u16 length field can carry.
	MaxTagLen = 0xFFFF
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry")
	magic4     = [...]byte{'T', 'G', 'C', 'H'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is the decoded envelope: the caller's payload bound to its logical
// expiry and tag set. The payload slice aliases the input buffer.
type Entry struct {
	ExpiresAt time.Time
	Tags      []string
	Payload   []byte
}

// Entry layout:
//
//	magic(4) | ver(1) | kind(1=entry) | expiresAt unix-milli (i64 be) |
//	ntags(u16 be) | (tagLen(u16 be) | tag(tagLen))* | vlen(u32 be) | payload(vlen)
func EncodeEntry(expiresAt time.Time, tags []string, payload []byte) []byte {
	total := 4 + 1 + 1 + 8 + 2
	for _, t := range tags {
		total += 2 + len(t)
	}
	total += 4 + len(payload)

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(expiresAt.UnixMilli()))
	buf.Write(u8[:])

	if len(tags) > 0xFFFF {
		panic("tagcache: too many tags in entry")
	}
	binary.BigEndian.PutUint16(u2[:], uint16(len(tags)))
	buf.Write(u2[:])

	for _, t := range tags {
		if l := len(t); l == 0 || l > MaxTagLen {
			panic("tagcache: invalid tag length in entry")
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(t)))
		buf.Write(u2[:])
		buf.WriteString(t)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)

	return buf.Bytes()
}

func DecodeEntry(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	off := 6

	expMilli := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	ntags := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	var tags []string
	if ntags > 0 {
		tags = make([]string, 0, ntags)
	}
	for i := 0; i < ntags; i++ {
		if off+2 > len(b) {
			return Entry{}, ErrCorrupt
		}
		tlen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if tlen <= 0 || tlen > len(b)-off { // overflow-safe bound check
			return Entry{}, ErrCorrupt
		}
		tags = append(tags, string(b[off:off+tlen]))
		off += tlen
	}

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		ExpiresAt: time.UnixMilli(expMilli),
		Tags:      tags,
		Payload:   b[off : off+vlen],
	}, nil
}
