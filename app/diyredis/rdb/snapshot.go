package rdb

import (
	"encoding/binary"

	"redikv/app/diyredis/crc64"
)

// EmptySnapshot returns the fixed, valid RDB byte sequence this server sends
// as the body of a PSYNC full resync (spec.md §6: "a fixed build-time empty
// RDB blob"). It is a real, checksummed, zero-key RDB file: just the magic
// header immediately followed by EOF, so a real replica client that chose to
// parse it (this one doesn't) would see a valid, empty snapshot.
func EmptySnapshot() []byte {
	buf := append([]byte("REDIS0011"), opCodeEOF)
	trailer := make([]byte, 8)
	binary.LittleEndian.PutUint64(trailer, crc64.Checksum(buf))
	return append(buf, trailer...)
}
