// Package session implements the per-connection driver: frame → parse →
// (transaction queue | execute) → reply, including the MULTI/EXEC/DISCARD
// state machine and the replica handshake/fan-out hooks a master connection
// needs (spec.md §4.F).
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rsms/go-log"

	"redikv/app/diyredis/command"
	"redikv/app/diyredis/executor"
	"redikv/app/diyredis/resp"
	"redikv/app/diyredis/store"
	"redikv/app/diyredis/wait"
)

// txState is this connection's MULTI/EXEC state, per spec.md §4.D.
type txState int

const (
	txIdle txState = iota
	txQueuing
)

// Replicas is the master-side hook a session uses to turn itself into a
// replica sink after a successful PSYNC and to fan out write-command bytes.
// It is implemented by the replication package; server wires the concrete
// type in. A nil Replicas means this server never promotes connections to
// replica sinks (e.g. the CLI didn't need the role, or fan-out isn't wanted).
type Replicas interface {
	Register(conn net.Conn)
	Fanout(raw []byte)
}

// Options bundles the shared, process-wide collaborators a session needs.
type Options struct {
	Keyspace *store.Keyspace
	Waiters  *wait.Registry

	// ExecLock serializes a MULTI/EXEC batch against every other command on
	// every other connection, standing in for the single-threaded event
	// loop's "no preemption mid-transaction" guarantee (spec.md §5) now that
	// connections run on their own goroutines. Individual (non-transaction)
	// commands do not take it: the keyspace already guards each of its own
	// operations, and BLPOP/XREAD BLOCK must never suspend while holding a
	// lock another connection needs in order to wake them.
	ExecLock *sync.Mutex

	Replicas Replicas
	ReplID   string
	EmptyRDB []byte

	Log *log.Logger
}

// Session drives one client connection end to end.
type Session struct {
	opts Options
	conn net.Conn
	fr   *resp.FrameReader
	enc  resp.Encoder
	done chan struct{}

	tx    txState
	queue []queuedCmd
	dirty bool
}

type queuedCmd struct {
	cmd command.Command
	raw []byte
}

// New wraps conn for the session loop. Call Serve to run it; Serve returns
// once the connection closes or a protocol error is encountered. opts.Log
// may be left nil, in which case the session logs nothing.
func New(conn net.Conn, opts Options) *Session {
	return &Session{
		opts: opts,
		conn: conn,
		fr:   resp.NewFrameReader(conn),
		done: make(chan struct{}),
	}
}

// Done is closed once Serve returns, so blocking commands parked on this
// connection's behalf can be cancelled promptly (spec.md §5 "Cancellation").
func (s *Session) Done() <-chan struct{} { return s.done }

// Serve runs the read-parse-execute-reply loop until the connection closes
// or a malformed frame is seen.
func (s *Session) Serve() {
	defer close(s.done)

	for {
		v, raw, err := s.fr.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && s.opts.Log != nil {
				s.opts.Log.Warn("%s: %s", s.conn.RemoteAddr(), err)
			}
			return
		}

		args, ok := resp.StringArgs(v)
		if !ok || len(args) == 0 {
			s.write(resp.Err("ERR Protocol error"))
			return
		}

		cmd, perr := command.Parse(strings.ToUpper(args[0]), args[1:])
		if err := s.dispatch(cmd, perr, raw); err != nil {
			return
		}
	}
}

// dispatch steps the transaction state machine for one parsed frame and
// writes the corresponding reply. A returned error means the connection
// should be closed (write failure).
func (s *Session) dispatch(cmd command.Command, perr error, raw []byte) error {
	if perr != nil {
		if s.tx == txQueuing {
			s.dirty = true
		}
		return s.write(resp.Err("ERR " + perr.Error()))
	}

	switch cmd.(type) {
	case command.Multi:
		if s.tx == txQueuing {
			return s.write(resp.Err("ERR MULTI calls can not be nested"))
		}
		s.tx, s.queue, s.dirty = txQueuing, nil, false
		return s.write(resp.Simple("OK"))

	case command.Discard:
		if s.tx != txQueuing {
			return s.write(resp.Err("ERR DISCARD without MULTI"))
		}
		s.tx, s.queue, s.dirty = txIdle, nil, false
		return s.write(resp.Simple("OK"))

	case command.Exec:
		if s.tx != txQueuing {
			return s.write(resp.Err("ERR EXEC without MULTI"))
		}
		queue, dirty := s.queue, s.dirty
		s.tx, s.queue, s.dirty = txIdle, nil, false
		if dirty {
			return s.write(resp.Err("EXECABORT Transaction discarded because of previous errors"))
		}
		return s.write(s.runTransaction(queue))

	case command.ReplConf:
		return s.write(resp.Simple("OK"))

	case command.Psync:
		return s.handlePsync()
	}

	if s.tx == txQueuing {
		s.queue = append(s.queue, queuedCmd{cmd: cmd, raw: raw})
		return s.write(resp.Simple("QUEUED"))
	}

	return s.execOne(cmd, raw)
}

// execOne runs a single command outside a transaction. The keyspace guards
// its own operations, so no outer lock is taken here: BLPOP/XREAD BLOCK may
// suspend for as long as they like without blocking any other connection.
func (s *Session) execOne(cmd command.Command, raw []byte) error {
	reply := executor.Execute(s.opts.Keyspace, s.opts.Waiters, cmd, executor.Options{
		AllowBlock: true,
		Done:       s.done,
	})
	if err := s.write(reply); err != nil {
		return err
	}
	if s.opts.Replicas != nil && shouldReplicate(cmd, reply) {
		s.opts.Replicas.Fanout(raw)
	}
	return nil
}

// runTransaction executes a queued MULTI batch as a single atomic unit: no
// other connection's command can interleave for the duration (spec.md §5).
// Blocking commands degrade to their immediate form (AllowBlock: false)
// inside a transaction, so it is safe to hold ExecLock for the whole batch.
func (s *Session) runTransaction(queue []queuedCmd) resp.Value {
	s.opts.ExecLock.Lock()
	defer s.opts.ExecLock.Unlock()

	replies := make([]resp.Value, len(queue))
	for i, q := range queue {
		reply := executor.Execute(s.opts.Keyspace, s.opts.Waiters, q.cmd, executor.Options{AllowBlock: false})
		replies[i] = reply
		if s.opts.Replicas != nil && shouldReplicate(q.cmd, reply) {
			s.opts.Replicas.Fanout(q.raw)
		}
	}
	return resp.Arr(replies...)
}

// shouldReplicate reports whether cmd's reply reflects an actual keyspace
// mutation worth forwarding to replicas: write commands that failed
// (WRONGTYPE, bad ID, ...) or a BLPOP that merely timed out mutate nothing.
func shouldReplicate(cmd command.Command, reply resp.Value) bool {
	if !command.IsWrite(cmd) {
		return false
	}
	if reply.Kind == resp.Error {
		return false
	}
	if _, ok := cmd.(command.BLPop); ok && reply.Kind == resp.Array && reply.Null {
		return false
	}
	return true
}

// handlePsync replies with +FULLRESYNC, the fixed empty RDB snapshot framed
// as a bulk string with no trailing CRLF (spec.md §4.F point 3), and
// registers this connection as a replica sink for future write fan-out.
func (s *Session) handlePsync() error {
	if err := s.write(resp.Simple(fmt.Sprintf("FULLRESYNC %s 0", s.opts.ReplID))); err != nil {
		return err
	}
	header := fmt.Sprintf("$%d\r\n", len(s.opts.EmptyRDB))
	if _, err := s.conn.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := s.conn.Write(s.opts.EmptyRDB); err != nil {
		return err
	}
	if s.opts.Replicas != nil {
		s.opts.Replicas.Register(s.conn)
	}
	if s.opts.Log != nil {
		s.opts.Log.Info("%s: promoted to replica sink", s.conn.RemoteAddr())
	}
	return nil
}

func (s *Session) write(v resp.Value) error {
	s.enc.Reset()
	s.enc.Write(v)
	_, err := s.conn.Write(s.enc.Buf)
	return err
}
