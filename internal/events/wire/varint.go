// Package wire implements the upstream subscription's message types by
// hand, in the same varint/length-delimited marshal/unmarshal style
// gogo/protobuf generates (the teacher's own go.mod carries gogo/protobuf
// as an indirect dependency; this keeps the wire layer dependency-light
// while remaining wire-compatible with that convention, without requiring
// a protoc build step).
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	wireVarint = 0
	wireBytes  = 2
)

func appendTag(buf []byte, field int, wireType int) []byte {
	return appendVarint(buf, uint64(field)<<3|uint64(wireType))
}

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendString(buf []byte, field int, s string) []byte {
	if s == "" {
		return buf
	}
	buf = appendTag(buf, field, wireBytes)
	buf = appendVarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendBytes(buf []byte, field int, b []byte) []byte {
	if len(b) == 0 {
		return buf
	}
	buf = appendTag(buf, field, wireBytes)
	buf = appendVarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendInt64(buf []byte, field int, v int64) []byte {
	if v == 0 {
		return buf
	}
	buf = appendTag(buf, field, wireVarint)
	return appendVarint(buf, uint64(v))
}

func appendBool(buf []byte, field int, v bool) []byte {
	if !v {
		return buf
	}
	buf = appendTag(buf, field, wireVarint)
	return appendVarint(buf, 1)
}

func appendMessage(buf []byte, field int, msg interface{ Marshal() ([]byte, error) }) ([]byte, error) {
	sub, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	buf = appendTag(buf, field, wireBytes)
	buf = appendVarint(buf, uint64(len(sub)))
	return append(buf, sub...), nil
}

var errTruncated = errors.New("wire: truncated message")

// decoder walks a length-delimited buffer, yielding (field, wireType, ...)
// tuples the caller switches on.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(buf []byte) *decoder { return &decoder{buf: buf} }

func (d *decoder) done() bool { return d.pos >= len(d.buf) }

func (d *decoder) tag() (field int, wireType int, err error) {
	v, err := d.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

func (d *decoder) varint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, errTruncated
	}
	d.pos += n
	return v, nil
}

func (d *decoder) int64() (int64, error) {
	v, err := d.varint()
	return int64(v), err
}

func (d *decoder) bool() (bool, error) {
	v, err := d.varint()
	return v != 0, err
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.varint()
	if err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	if n > uint64(len(d.buf)) || end > len(d.buf) || end < d.pos {
		return nil, errTruncated
	}
	b := d.buf[d.pos:end]
	d.pos = end
	return b, nil
}

func (d *decoder) string() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// skip advances past a field's value given its wire type, for forward
// compatibility with fields this version of the decoder doesn't know.
func (d *decoder) skip(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := d.varint()
		return err
	case wireBytes:
		_, err := d.bytes()
		return err
	default:
		return errors.New("wire: unsupported wire type")
	}
}
