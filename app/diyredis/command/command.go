// Package command holds the typed command domain and its RESP-array parser.
// Parsing is a two-step pipeline, mirroring the reference implementation's
// registry-based dispatcher: decode to a RESP array of bulk strings first
// (the resp package's job), then dispatch on the upper-cased command name to
// a per-command validator here that returns either a typed Command or a
// ParseError.
package command

import "redikv/app/diyredis/store"

// Command is the marker interface every parsed command variant implements.
type Command interface {
	commandName() string
}

// Ping is the PING command.
type Ping struct{}

// Echo is the ECHO command.
type Echo struct {
	Message string
}

// Set is the SET command, with an optional EX/PX expiry.
type Set struct {
	Key, Value string
	HasExpiry  bool
	ExpiryMS   int64
}

// Get is the GET command.
type Get struct {
	Key string
}

// Incr is the INCR command.
type Incr struct {
	Key string
}

// RPush is the RPUSH command.
type RPush struct {
	Key    string
	Values []string
}

// LPush is the LPUSH command.
type LPush struct {
	Key    string
	Values []string
}

// LRange is the LRANGE command.
type LRange struct {
	Key         string
	Start, Stop int64
}

// LLen is the LLEN command.
type LLen struct {
	Key string
}

// LPop is the LPOP command. HasCount distinguishes `LPOP k` (single bulk
// reply) from `LPOP k n` (array reply), per spec.md §9's note that the
// reference implementation's single-element form is a bulk, not a
// one-element array.
type LPop struct {
	Key      string
	HasCount bool
	Count    int
}

// BLPop is the BLPOP command. TimeoutSeconds == 0 means block indefinitely.
type BLPop struct {
	Key            string
	TimeoutSeconds float64
}

// Type is the TYPE command.
type Type struct {
	Key string
}

// XAdd is the XADD command. AutoMS/AutoSeq flag "*" / partial-"*" generation
// using explicit booleans rather than zero-value truthiness, per spec.md §9's
// "is-None vs truthiness" flag.
type XAdd struct {
	Key             string
	MS, Seq         uint64
	AutoMS, AutoSeq bool
	Fields          []store.FieldPair
}

// XRange is the XRANGE command. Start/End are already resolved: a "-" start
// becomes store.MinStreamID, a "+" end becomes store.MaxStreamID, and an
// omitted sequence on either bound is filled in (0 for start, max for end).
type XRange struct {
	Key        string
	Start, End store.StreamID
}

// XReadStream is one (key, cursor) pair from an XREAD STREAMS clause.
type XReadStream struct {
	Key      string
	After    store.StreamID
	FromLast bool // true for "$": resolved to the stream's current last ID at registration time
}

// XRead is the XREAD command.
type XRead struct {
	Streams  []XReadStream
	HasBlock bool
	BlockMS  int64
}

// Multi is the MULTI command.
type Multi struct{}

// Exec is the EXEC command.
type Exec struct{}

// Discard is the DISCARD command.
type Discard struct{}

// ReplConf is the REPLCONF command, kept generic over its argument pairs
// since the server only needs to acknowledge it, not interpret every
// sub-option.
type ReplConf struct {
	Args []string
}

// Psync is the PSYNC command.
type Psync struct{}

func (Ping) commandName() string     { return "PING" }
func (Echo) commandName() string     { return "ECHO" }
func (Set) commandName() string      { return "SET" }
func (Get) commandName() string      { return "GET" }
func (Incr) commandName() string     { return "INCR" }
func (RPush) commandName() string    { return "RPUSH" }
func (LPush) commandName() string    { return "LPUSH" }
func (LRange) commandName() string   { return "LRANGE" }
func (LLen) commandName() string     { return "LLEN" }
func (LPop) commandName() string     { return "LPOP" }
func (BLPop) commandName() string    { return "BLPOP" }
func (Type) commandName() string     { return "TYPE" }
func (XAdd) commandName() string     { return "XADD" }
func (XRange) commandName() string   { return "XRANGE" }
func (XRead) commandName() string    { return "XREAD" }
func (Multi) commandName() string    { return "MULTI" }
func (Exec) commandName() string     { return "EXEC" }
func (Discard) commandName() string  { return "DISCARD" }
func (ReplConf) commandName() string { return "REPLCONF" }
func (Psync) commandName() string    { return "PSYNC" }

// IsWrite reports whether cmd mutates the keyspace and must therefore be
// fanned out to replicas (spec.md §4.D/§4.F).
func IsWrite(cmd Command) bool {
	switch cmd.(type) {
	case Set, RPush, LPush, LPop, Incr, XAdd, BLPop:
		return true
	default:
		return false
	}
}

// ParseError is returned by Parse for validation/arity/syntax failures. It is
// always reported to the client as `-ERR <message>`.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }
