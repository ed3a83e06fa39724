package store

import "time"

// StreamEntryOut is one decoded stream entry, ready for RESP encoding.
type StreamEntryOut struct {
	ID     StreamID
	Fields []FieldPair
}

// Stream is an append-only, strictly-increasing-ID sequence of field sets,
// backed by the radix tree in radix.go for ordered range queries.
type Stream struct {
	root   streamEntryNode
	lastID StreamID
	count  int
}

// LastID returns the highest inserted ID, or the zero ID if the stream is
// empty.
func (s *Stream) LastID() StreamID { return s.lastID }

// Len reports the number of entries currently in the stream.
func (s *Stream) Len() int { return s.count }

// NextID resolves an XADD ID argument against the stream's current state:
//
//   - autoMS && autoSeq ("*"): full autogeneration from the wall clock.
//   - autoSeq only (explicit ms, "*" seq): sequence autogeneration.
//   - neither: the explicit (ms, seq) pair, validated by the caller.
func (s *Stream) NextID(ms uint64, seq uint64, autoMS, autoSeq bool) StreamID {
	if autoMS {
		now := uint64(time.Now().UnixMilli())
		genMS := now
		if genMS < s.lastID.MS {
			genMS = s.lastID.MS
		}
		genSeq := uint64(0)
		if genMS == s.lastID.MS {
			genSeq = s.lastID.Seq + 1
		}
		return StreamID{genMS, genSeq}
	}
	if autoSeq {
		var genSeq uint64
		if ms == s.lastID.MS {
			genSeq = s.lastID.Seq + 1
		} else if ms == 0 && s.count == 0 {
			genSeq = 1
		}
		return StreamID{ms, genSeq}
	}
	return StreamID{ms, seq}
}

// Insert appends an entry with the given ID and fields. The caller must
// already have validated id > LastID() and id != (0,0); Insert does not
// re-check ordering.
func (s *Stream) Insert(id StreamID, fields []FieldPair) {
	node := s.root.insert(id.internalRepr())
	node.leaf = &streamLeaf{id: id, fields: fields}
	s.lastID = id
	s.count++
}

// Range returns entries with id in [from, to], inclusive, ordered lowest to
// highest.
func (s *Stream) Range(from, to StreamID) []StreamEntryOut {
	leaves := s.root.rangeLeaves(from.internalRepr(), to.internalRepr())
	out := make([]StreamEntryOut, len(leaves))
	for i, leaf := range leaves {
		out[i] = StreamEntryOut{ID: leaf.id, Fields: leaf.fields}
	}
	return out
}

// After returns entries with id strictly greater than after, ordered lowest
// to highest — the primitive XREAD is built on.
func (s *Stream) After(after StreamID) []StreamEntryOut {
	if s.count == 0 {
		return nil
	}
	next, overflow := streamIDNext(after)
	if overflow {
		return nil
	}
	return s.Range(next, MaxStreamID)
}

// streamIDNext returns the smallest StreamID strictly greater than id.
func streamIDNext(id StreamID) (StreamID, bool) {
	if id.Seq == maxUint64 {
		if id.MS == maxUint64 {
			return StreamID{}, true
		}
		return StreamID{id.MS + 1, 0}, false
	}
	return StreamID{id.MS, id.Seq + 1}, false
}
