package store

import "errors"

// ErrStreamIDTooSmall is XADD's ordering-violation error (spec.md §4.B).
var ErrStreamIDTooSmall = errors.New("The ID specified in XADD is equal or smaller than the target stream top item")

// ErrStreamIDZero is XADD's 0-0 rejection (spec.md §4.B).
var ErrStreamIDZero = errors.New("The ID specified in XADD must be greater than 0-0")

// XAdd resolves ms/seq (honoring autoMS/autoSeq per Stream.NextID), validates
// monotonicity, appends the entry, and returns the concrete ID assigned.
func (ks *Keyspace) XAdd(key string, ms, seq uint64, autoMS, autoSeq bool, fields []FieldPair) (StreamID, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	var stream *Stream
	if e == nil {
		stream = &Stream{}
	} else if e.kind != KindStream {
		return StreamID{}, ErrWrongType{}
	} else {
		stream = e.stream
	}

	id := stream.NextID(ms, seq, autoMS, autoSeq)
	if id == (StreamID{}) {
		return StreamID{}, ErrStreamIDZero
	}
	if stream.Len() > 0 && !id.Greater(stream.LastID()) {
		return StreamID{}, ErrStreamIDTooSmall
	}

	stream.Insert(id, fields)
	if e == nil {
		ks.entries[key] = &entry{kind: KindStream, stream: stream}
	}
	return id, nil
}

// XRange returns entries of the stream at key within [from, to], inclusive.
// A missing key yields an empty (not error) result.
func (ks *Keyspace) XRange(key string, from, to StreamID) ([]StreamEntryOut, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != KindStream {
		return nil, ErrWrongType{}
	}
	return e.stream.Range(from, to), nil
}

// XLastID returns the current last ID of the stream at key, used to resolve
// XREAD's "$" last-id at registration time.
func (ks *Keyspace) XLastID(key string) (StreamID, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return StreamID{}, nil
	}
	if e.kind != KindStream {
		return StreamID{}, ErrWrongType{}
	}
	return e.stream.LastID(), nil
}

// XReadAfter returns entries of the stream at key strictly newer than after.
// A missing key yields an empty (not error) result.
func (ks *Keyspace) XReadAfter(key string, after StreamID) ([]StreamEntryOut, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != KindStream {
		return nil, ErrWrongType{}
	}
	return e.stream.After(after), nil
}
