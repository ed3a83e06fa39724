package replication

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rsms/go-log"

	"redikv/app/diyredis/command"
	"redikv/app/diyredis/executor"
	"redikv/app/diyredis/resp"
	"redikv/app/diyredis/store"
	"redikv/app/diyredis/wait"
)

// Client is the replica side of the handshake: it connects to a master,
// performs the PING/REPLCONF/PSYNC exchange, and then applies every command
// the master streams afterward to the local keyspace (spec.md §4.G).
type Client struct {
	MasterAddr string // "host:port"
	ListenPort string // this replica's own listening port, sent via REPLCONF
	Keyspace   *store.Keyspace
	Waiters    *wait.Registry
	Log        *log.Logger
}

// Run connects, completes the handshake, and then blocks applying the
// master's command stream until the connection closes or ctx-less Run
// encounters an I/O error. It suppresses replies to the master, per spec.
func (c *Client) Run() error {
	conn, err := net.Dial("tcp", c.MasterAddr)
	if err != nil {
		return fmt.Errorf("replication: dial %s: %w", c.MasterAddr, err)
	}
	defer conn.Close()

	fr := resp.NewFrameReader(conn)
	if err := c.handshake(conn, fr); err != nil {
		return fmt.Errorf("replication: handshake with %s: %w", c.MasterAddr, err)
	}
	if c.Log != nil {
		c.Log.Info("replication: full resync with %s complete", c.MasterAddr)
	}

	return c.streamCommands(fr)
}

// handshake runs the five-step replica bootstrap from spec.md §4.G and
// discards the RDB payload that follows FULLRESYNC (it is always the fixed
// empty snapshot; spec.md's Non-goals exclude loading it into the keyspace).
func (c *Client) handshake(conn net.Conn, fr *resp.FrameReader) error {
	if err := sendCommand(conn, "PING"); err != nil {
		return err
	}
	if _, err := expectSimple(fr, "PONG"); err != nil {
		return err
	}

	if err := sendCommand(conn, "REPLCONF", "listening-port", c.ListenPort); err != nil {
		return err
	}
	if _, err := expectSimple(fr, "OK"); err != nil {
		return err
	}

	if err := sendCommand(conn, "REPLCONF", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := expectSimple(fr, "OK"); err != nil {
		return err
	}

	if err := sendCommand(conn, "PSYNC", "?", "-1"); err != nil {
		return err
	}
	reply, err := fr.ReadLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(reply, "+FULLRESYNC") {
		return fmt.Errorf("unexpected PSYNC reply %q", reply)
	}

	n, err := fr.ReadBulkHeaderLen()
	if err != nil {
		return err
	}
	if _, err := fr.ReadN(n); err != nil {
		return err
	}
	return nil
}

// streamCommands applies every command frame the master sends from here on,
// with blocking commands degraded to their immediate form (the replica
// applies a write the instant the master forwarded it; it never suspends
// waiting for a condition the master itself already resolved) and no reply
// written back.
func (c *Client) streamCommands(fr *resp.FrameReader) error {
	for {
		v, _, err := fr.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		args, ok := resp.StringArgs(v)
		if !ok || len(args) == 0 {
			continue
		}

		cmd, err := command.Parse(strings.ToUpper(args[0]), args[1:])
		if err != nil {
			if c.Log != nil {
				c.Log.Warn("replication: bad command from master: %s", err)
			}
			continue
		}
		executor.Execute(c.Keyspace, c.Waiters, cmd, executor.Options{AllowBlock: false})
	}
}

func sendCommand(conn net.Conn, args ...string) error {
	items := make([]resp.Value, len(args))
	for i, a := range args {
		items[i] = resp.Bulk(a)
	}
	_, err := conn.Write(resp.Encode(resp.Arr(items...)))
	return err
}

// expectSimple reads one frame and requires it to be a RESP simple string
// equal to want, case-insensitively (masters reply "+PONG", not "+pong", but
// this keeps the check robust to either).
func expectSimple(fr *resp.FrameReader, want string) (string, error) {
	v, _, err := fr.ReadFrame()
	if err != nil {
		return "", err
	}
	if v.Kind != resp.SimpleString || !strings.EqualFold(v.Str, want) {
		return "", fmt.Errorf("expected +%s, got %v", want, v)
	}
	return v.Str, nil
}
