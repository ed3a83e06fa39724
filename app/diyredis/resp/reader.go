package resp

import (
	"bytes"
	"io"
	"strconv"
)

// FrameReader pulls complete RESP frames off a byte stream, retaining
// partial frames across reads the way the connection driver needs to
// (spec.md §4.F: "Partial frames are retained across reads"). It also
// exposes the small number of non-RESP-framed reads the replication
// handshake needs (a bare CRLF-terminated line, or a fixed byte count with
// no trailing CRLF, for the PSYNC RDB payload).
type FrameReader struct {
	r   io.Reader
	buf []byte
}

// NewFrameReader wraps r for frame-at-a-time reading.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame blocks until one complete RESP value is available and returns
// it along with the exact raw bytes it was decoded from — the bytes a
// master must forward verbatim to replicas (spec.md §9: "forward the
// original request bytes, not a re-encoded command").
func (fr *FrameReader) ReadFrame() (Value, []byte, error) {
	for {
		v, n, err := Decode(fr.buf)
		if err == nil {
			raw := append([]byte(nil), fr.buf[:n]...)
			fr.buf = fr.buf[n:]
			return v, raw, nil
		}
		if err != ErrIncomplete {
			return Value{}, nil, err
		}
		if err := fr.fill(); err != nil {
			return Value{}, nil, err
		}
	}
}

// ReadLine reads a single CRLF-terminated line (without the CRLF), for the
// replica handshake's simple-string replies.
func (fr *FrameReader) ReadLine() (string, error) {
	for {
		if idx := bytes.IndexByte(fr.buf, '\n'); idx != -1 {
			line := fr.buf[:idx]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			s := string(line)
			fr.buf = fr.buf[idx+1:]
			return s, nil
		}
		if err := fr.fill(); err != nil {
			return "", err
		}
	}
}

// ReadN reads exactly n bytes verbatim, with no framing — used to read the
// RDB payload after a `$<n>\r\n` header, which (per spec.md §4.G) carries no
// trailing CRLF the way an ordinary bulk string would.
func (fr *FrameReader) ReadN(n int) ([]byte, error) {
	for len(fr.buf) < n {
		if err := fr.fill(); err != nil {
			return nil, err
		}
	}
	out := append([]byte(nil), fr.buf[:n]...)
	fr.buf = fr.buf[n:]
	return out, nil
}

// ReadBulkHeaderLen reads a `$<n>\r\n` header (as used to announce the RDB
// payload size) and returns n.
func (fr *FrameReader) ReadBulkHeaderLen() (int, error) {
	line, err := fr.ReadLine()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 || line[0] != '$' {
		return 0, ErrProtocol
	}
	return strconv.Atoi(line[1:])
}

func (fr *FrameReader) fill() error {
	chunk := make([]byte, 4096)
	n, err := fr.r.Read(chunk)
	if n > 0 {
		fr.buf = append(fr.buf, chunk[:n]...)
	}
	if n == 0 && err != nil {
		return err
	}
	return nil
}
