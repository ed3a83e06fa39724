// Package store implements the shared keyspace: a process-wide map of keys
// to typed entries (strings, lists, streams), plus the mutation and read
// primitives the command executor drives.
//
// Every exported method locks the keyspace for its own duration, per the
// concurrency model in spec.md §5: with goroutine-per-connection instead of
// a single event loop, the keyspace lock stands in for the cooperative
// scheduler's "no preemption between suspension points" guarantee.
package store

import (
	"strconv"
	"sync"
	"time"
)

// Kind tags which entry variant a key holds.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindList
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// entry is the tagged value stored for one key. Only the field matching Kind
// is meaningful.
type entry struct {
	kind      Kind
	str       string
	expiresAt time.Time // zero value means no TTL
	list      []string
	stream    *Stream
}

func (e *entry) expired(now time.Time) bool {
	return e.kind == KindString && !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Keyspace is the process-wide Key -> Entry map.
type Keyspace struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty keyspace.
func New() *Keyspace {
	return &Keyspace{entries: make(map[string]*entry)}
}

// lookup returns the live (non-expired, present) entry for key, removing it
// first if it was a string past its expiry. Caller must hold mu.
func (ks *Keyspace) lookup(key string) *entry {
	e, ok := ks.entries[key]
	if !ok {
		return nil
	}
	if e.expired(time.Now()) {
		delete(ks.entries, key)
		return nil
	}
	return e
}

// ErrWrongType is returned when a command targets a key holding a different
// entry kind than the command requires.
type ErrWrongType struct{}

func (ErrWrongType) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// GetString returns the string stored at key. ok is false if the key is
// missing or expired; err is set (and ok is meaningless) if the key holds a
// different entry kind.
func (ks *Keyspace) GetString(key string) (value string, ok bool, err error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return "", false, nil
	}
	if e.kind != KindString {
		return "", false, ErrWrongType{}
	}
	return e.str, true, nil
}

// SetString stores value at key with an optional TTL, replacing any prior
// entry of any kind. ttl <= 0 means no expiry.
func (ks *Keyspace) SetString(key, value string, ttl time.Duration) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := &entry{kind: KindString, str: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	ks.entries[key] = e
}

// Incr parses the stored string as a signed 64-bit integer, increments it by
// one, stores and returns the new value. A missing key starts from 0. TTL,
// if any, is preserved.
func (ks *Keyspace) Incr(key string) (int64, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		ks.entries[key] = &entry{kind: KindString, str: "1"}
		return 1, nil
	}
	if e.kind != KindString {
		return 0, ErrWrongType{}
	}

	n, err := strconv.ParseInt(e.str, 10, 64)
	if err != nil {
		return 0, errNotInteger{}
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

// errNotInteger is returned by Incr when the stored string is not a
// well-formed signed 64-bit decimal integer.
type errNotInteger struct{}

func (errNotInteger) Error() string {
	return "value is not an integer or out of range"
}

// IsNotInteger reports whether err is the "not an integer" failure from Incr.
func IsNotInteger(err error) bool {
	_, ok := err.(errNotInteger)
	return ok
}

// TypeOf returns the entry kind held at key, KindNone if absent. Its String
// method gives the RESP TYPE name: "string", "list", "stream" or "none".
func (ks *Keyspace) TypeOf(key string) Kind {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return KindNone
	}
	return e.kind
}

// RPush appends values to the tail of the list at key (creating it if
// absent) and returns the new length.
func (ks *Keyspace) RPush(key string, values []string) (int, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, err := ks.listEntryForWrite(key)
	if err != nil {
		return 0, err
	}
	e.list = append(e.list, values...)
	return len(e.list), nil
}

// LPush prepends values to the head of the list at key (creating it if
// absent) and returns the new length. Each successive argument ends up
// further left, i.e. LPUSH k a b c yields [c, b, a, ...].
func (ks *Keyspace) LPush(key string, values []string) (int, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, err := ks.listEntryForWrite(key)
	if err != nil {
		return 0, err
	}
	prefix := make([]string, len(values))
	for i, v := range values {
		prefix[len(values)-1-i] = v
	}
	e.list = append(prefix, e.list...)
	return len(e.list), nil
}

func (ks *Keyspace) listEntryForWrite(key string) (*entry, error) {
	e := ks.lookup(key)
	if e == nil {
		e = &entry{kind: KindList}
		ks.entries[key] = e
		return e, nil
	}
	if e.kind != KindList {
		return nil, ErrWrongType{}
	}
	return e, nil
}

// LPopOne removes and returns the head element of the list at key. ok is
// false if the key is missing, empty, or the wrong type (err distinguishes
// the latter).
func (ks *Keyspace) LPopOne(key string) (value string, ok bool, err error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return "", false, nil
	}
	if e.kind != KindList {
		return "", false, ErrWrongType{}
	}
	if len(e.list) == 0 {
		return "", false, nil
	}
	value = e.list[0]
	e.list = e.list[1:]
	if len(e.list) == 0 {
		delete(ks.entries, key)
	}
	return value, true, nil
}

// LPopCount removes and returns up to count elements from the head of the
// list at key.
func (ks *Keyspace) LPopCount(key string, count int) ([]string, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != KindList {
		return nil, ErrWrongType{}
	}
	if count > len(e.list) {
		count = len(e.list)
	}
	popped := append([]string(nil), e.list[:count]...)
	e.list = e.list[count:]
	if len(e.list) == 0 {
		delete(ks.entries, key)
	}
	return popped, nil
}

// LRange returns elements of the list at key in [start, stop], inclusive,
// with Python-style negative indices counted from the end.
func (ks *Keyspace) LRange(key string, start, stop int64) ([]string, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return []string{}, nil
	}
	if e.kind != KindList {
		return nil, ErrWrongType{}
	}

	n := int64(len(e.list))
	if start < 0 {
		start = n + start
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop = n + stop
		if stop < 0 {
			stop = -1
		}
	}
	stop++
	if stop > n {
		stop = n
	}
	if start >= stop {
		return []string{}, nil
	}
	return append([]string(nil), e.list[start:stop]...), nil
}

// LLen returns the length of the list at key, or 0 if absent.
func (ks *Keyspace) LLen(key string) (int, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e := ks.lookup(key)
	if e == nil {
		return 0, nil
	}
	if e.kind != KindList {
		return 0, ErrWrongType{}
	}
	return len(e.list), nil
}

// Keys returns every live key in the keyspace, removing expired strings as it
// goes. No command is wired to it.
func (ks *Keyspace) Keys() []string {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(ks.entries))
	for k, e := range ks.entries {
		if e.expired(now) {
			delete(ks.entries, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
