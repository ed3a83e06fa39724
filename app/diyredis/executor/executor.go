// Package executor turns a parsed command.Command into a RESP reply,
// mutating the shared keyspace and wait registry as needed. It is the
// "pure dispatch" component of spec.md §4.D: given a typed command and the
// shared keyspace, produce a reply value.
package executor

import (
	"time"

	"redikv/app/diyredis/command"
	"redikv/app/diyredis/resp"
	"redikv/app/diyredis/store"
	"redikv/app/diyredis/wait"
)

// Options configures how a single Execute call may behave. AllowBlock is
// false while executing a queued MULTI/EXEC batch: real Redis (and this
// spec's serialized-transaction model) never suspends mid-transaction, so
// BLPOP/XREAD BLOCK degrade to their immediate, non-blocking form there.
type Options struct {
	AllowBlock bool
	Done       <-chan struct{} // closed when the owning connection goes away
}

// Execute runs cmd against ks (and, for blocking commands, waiters) and
// returns the RESP reply to send back to the client.
func Execute(ks *store.Keyspace, waiters *wait.Registry, cmd command.Command, opts Options) resp.Value {
	switch c := cmd.(type) {
	case command.Ping:
		return resp.Simple("PONG")

	case command.Echo:
		return resp.Bulk(c.Message)

	case command.Set:
		var ttl time.Duration
		if c.HasExpiry {
			ttl = time.Duration(c.ExpiryMS) * time.Millisecond
		}
		ks.SetString(c.Key, c.Value, ttl)
		return resp.Simple("OK")

	case command.Get:
		v, ok, err := ks.GetString(c.Key)
		if err != nil {
			return errReply(err)
		}
		if !ok {
			return resp.NullBulk()
		}
		return resp.Bulk(v)

	case command.Incr:
		n, err := ks.Incr(c.Key)
		if err != nil {
			return errReply(err)
		}
		return resp.Int64(n)

	case command.RPush:
		n, err := ks.RPush(c.Key, c.Values)
		if err != nil {
			return errReply(err)
		}
		for range c.Values {
			waiters.SignalList(c.Key)
		}
		return resp.Int64(int64(n))

	case command.LPush:
		n, err := ks.LPush(c.Key, c.Values)
		if err != nil {
			return errReply(err)
		}
		for range c.Values {
			waiters.SignalList(c.Key)
		}
		return resp.Int64(int64(n))

	case command.LRange:
		values, err := ks.LRange(c.Key, c.Start, c.Stop)
		if err != nil {
			return errReply(err)
		}
		return resp.BulkStrings(values)

	case command.LLen:
		n, err := ks.LLen(c.Key)
		if err != nil {
			return errReply(err)
		}
		return resp.Int64(int64(n))

	case command.LPop:
		return execLPop(ks, c)

	case command.BLPop:
		return execBLPop(ks, waiters, c, opts)

	case command.Type:
		return resp.Simple(ks.TypeOf(c.Key).String())

	case command.XAdd:
		id, err := ks.XAdd(c.Key, c.MS, c.Seq, c.AutoMS, c.AutoSeq, c.Fields)
		if err != nil {
			return errReply(err)
		}
		waiters.SignalStream(c.Key)
		return resp.Bulk(id.String())

	case command.XRange:
		entries, err := ks.XRange(c.Key, c.Start, c.End)
		if err != nil {
			return errReply(err)
		}
		return encodeStreamEntries(entries)

	case command.XRead:
		return execXRead(ks, waiters, c, opts)

	default:
		return resp.Err("ERR unsupported command")
	}
}

func execLPop(ks *store.Keyspace, c command.LPop) resp.Value {
	if !c.HasCount {
		v, ok, err := ks.LPopOne(c.Key)
		if err != nil {
			return errReply(err)
		}
		if !ok {
			return resp.NullBulk()
		}
		return resp.Bulk(v)
	}

	values, err := ks.LPopCount(c.Key, c.Count)
	if err != nil {
		return errReply(err)
	}
	if values == nil {
		return resp.NullArray()
	}
	return resp.BulkStrings(values)
}

func execBLPop(ks *store.Keyspace, waiters *wait.Registry, c command.BLPop, opts Options) resp.Value {
	if v, ok, err := ks.LPopOne(c.Key); err != nil {
		return errReply(err)
	} else if ok {
		return resp.Arr(resp.Bulk(c.Key), resp.Bulk(v))
	}

	if !opts.AllowBlock {
		return resp.NullArray()
	}

	var deadline <-chan time.Time
	if c.TimeoutSeconds > 0 {
		timer := time.NewTimer(time.Duration(c.TimeoutSeconds * float64(time.Second)))
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		w := wait.NewWaiter()
		waiters.RegisterList(c.Key, w)

		select {
		case <-w.C():
			waiters.RemoveList(c.Key, w)
			if v, ok, err := ks.LPopOne(c.Key); err != nil {
				return errReply(err)
			} else if ok {
				return resp.Arr(resp.Bulk(c.Key), resp.Bulk(v))
			}
			// lost the race to another waiter; loop and re-register

		case <-deadline:
			waiters.RemoveList(c.Key, w)
			return resp.NullArray()

		case <-opts.Done:
			waiters.RemoveList(c.Key, w)
			return resp.NullArray()
		}
	}
}

func execXRead(ks *store.Keyspace, waiters *wait.Registry, c command.XRead, opts Options) resp.Value {
	cursors := make([]store.StreamID, len(c.Streams))
	for i, s := range c.Streams {
		if s.FromLast {
			last, err := ks.XLastID(s.Key)
			if err != nil {
				return errReply(err)
			}
			cursors[i] = last
		} else {
			cursors[i] = s.After
		}
	}

	result, err := collectXRead(ks, c.Streams, cursors)
	if err != nil {
		return errReply(err)
	}
	if !isEmptyXReadResult(result) {
		return result
	}

	if !c.HasBlock || !opts.AllowBlock {
		return resp.NullArray()
	}

	var deadline <-chan time.Time
	if c.BlockMS > 0 {
		timer := time.NewTimer(time.Duration(c.BlockMS) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	w := wait.NewWaiter()
	for _, s := range c.Streams {
		waiters.RegisterStream(s.Key, w)
	}
	defer func() {
		for _, s := range c.Streams {
			waiters.RemoveStream(s.Key, w)
		}
	}()

	for {
		select {
		case <-w.C():
			result, err := collectXRead(ks, c.Streams, cursors)
			if err != nil {
				return errReply(err)
			}
			if !isEmptyXReadResult(result) {
				return result
			}
			// spurious wake (entry added to a watched stream but still not
			// newer than the cursor); keep waiting.

		case <-deadline:
			return resp.NullArray()

		case <-opts.Done:
			return resp.NullArray()
		}
	}
}

func collectXRead(ks *store.Keyspace, streams []command.XReadStream, cursors []store.StreamID) (resp.Value, error) {
	var perStream []resp.Value
	for i, s := range streams {
		entries, err := ks.XReadAfter(s.Key, cursors[i])
		if err != nil {
			return resp.Value{}, err
		}
		if len(entries) == 0 {
			continue
		}
		perStream = append(perStream, resp.Arr(resp.Bulk(s.Key), encodeStreamEntries(entries)))
	}
	if len(perStream) == 0 {
		return resp.NullArray(), nil
	}
	return resp.Arr(perStream...), nil
}

func isEmptyXReadResult(v resp.Value) bool {
	return v.Kind == resp.Array && (v.Null || len(v.Items) == 0)
}

func encodeStreamEntries(entries []store.StreamEntryOut) resp.Value {
	items := make([]resp.Value, len(entries))
	for i, e := range entries {
		fields := make([]resp.Value, 0, len(e.Fields)*2)
		for _, f := range e.Fields {
			fields = append(fields, resp.Bulk(f.Name), resp.Bulk(f.Value))
		}
		items[i] = resp.Arr(resp.Bulk(e.ID.String()), resp.Arr(fields...))
	}
	return resp.Arr(items...)
}

// errReply formats err as a RESP error reply. WRONGTYPE carries its own code
// prefix already baked into its message; everything else gets the generic
// ERR prefix (spec.md §6).
func errReply(err error) resp.Value {
	if _, ok := err.(store.ErrWrongType); ok {
		return resp.Err(err.Error())
	}
	return resp.Err("ERR " + err.Error())
}
