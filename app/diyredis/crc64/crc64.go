// Package crc64 implements the "Jones" CRC-64 variant used by the Redis RDB
// file format's trailing checksum (poly 0xad93d23594c935a9, reflected,
// zero init, zero xorout).
package crc64

import (
	"encoding/binary"
	"hash/crc64"
)

// table is built from the bit-reversed form of the Jones polynomial, which is
// the form hash/crc64 expects.
var table = crc64.MakeTable(0x95ac9329ac4bc9b5)

// New returns a hash.Hash64 computing the Jones CRC-64 checksum.
func New() hash64 {
	return &digest{}
}

// digest holds the raw CRC register. crc64.Update inverts the register on
// entry and on exit, so each call is wrapped in a matching pair of inversions
// to get zero init and zero xorout.
type digest struct{ crc uint64 }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = ^crc64.Update(^d.crc, table, p)
	return len(p), nil
}
func (d *digest) Sum(b []byte) []byte { return binary.BigEndian.AppendUint64(b, d.crc) }
func (d *digest) Reset()              { d.crc = 0 }
func (d *digest) Size() int           { return crc64.Size }
func (d *digest) BlockSize() int      { return 1 }
func (d *digest) Sum64() uint64       { return d.crc }

type hash64 interface {
	Write(p []byte) (n int, err error)
	Sum(b []byte) []byte
	Reset()
	Size() int
	BlockSize() int
	Sum64() uint64
}

// Checksum returns the Jones CRC-64 of data in one call.
func Checksum(data []byte) uint64 {
	return ^crc64.Update(^uint64(0), table, data)
}
