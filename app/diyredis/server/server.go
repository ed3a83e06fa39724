// Package server wires the shared collaborators (keyspace, wait registry,
// replica registry) into a TCP accept loop, one goroutine per connection,
// mirroring the teacher server's MakeServer/Start/serve/handleConn shape but
// generalized past a single switch statement of inline commands (spec.md
// §4.F, §5).
package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rsms/go-log"

	"redikv/app/diyredis/rdb"
	"redikv/app/diyredis/replication"
	"redikv/app/diyredis/session"
	"redikv/app/diyredis/store"
	"redikv/app/diyredis/wait"
)

// Server owns the process-wide keyspace and the TCP listener that feeds it.
type Server struct {
	Addr string // "host:port" to listen on

	RdbDir      string
	RdbFilename string

	// ReplicaOf is "host:port" of a master to replicate from, or "" to run
	// as a standalone master.
	ReplicaOf string

	Log *log.Logger

	keyspace  *store.Keyspace
	waiters   *wait.Registry
	replicas  *replication.Registry
	execLock  sync.Mutex
	replID    string
	emptyRDB  []byte
	listener  net.Listener
	wg        sync.WaitGroup
	quit      chan os.Signal
}

// New builds a Server ready to Start. RdbDir/RdbFilename/ReplicaOf may be
// left zero; Addr starts out as ":6379".
func New() *Server {
	return &Server{
		Addr:     ":6379",
		keyspace: store.New(),
		waiters:  wait.New(),
		replicas: replication.NewRegistry(nil),
		replID:   randomReplID(),
		emptyRDB: rdb.EmptySnapshot(),
		quit:     make(chan os.Signal, 1),
	}
}

// randomReplID returns a 40-character hex string, the length Redis uses for
// a replication ID, even though this server never compares it against
// anything (spec.md's Non-goals exclude partial resync).
func randomReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform has no entropy source; a
		// fixed fallback keeps the server usable rather than panicking.
		return "0000000000000000000000000000000000000000"
	}
	return hex.EncodeToString(buf)
}

// LoadRdb loads RdbDir/RdbFilename into the keyspace, if both are set and
// the file exists. Call before Start.
func (s *Server) LoadRdb() error {
	if s.RdbDir == "" || s.RdbFilename == "" {
		return nil
	}
	path := s.RdbDir + "/" + s.RdbFilename
	if err := rdb.Load(path, s.keyspace); err != nil {
		return fmt.Errorf("server: loading %s: %w", path, err)
	}
	return nil
}

// Start binds the listener, optionally starts replicating from ReplicaOf,
// and blocks until SIGINT/SIGTERM, draining in-flight connections before
// returning.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.Addr, err)
	}
	defer listener.Close()
	s.listener = listener

	if s.ReplicaOf != "" {
		go s.runReplicaClient()
	}

	go s.serve()
	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)

	<-s.quit
	if s.Log != nil {
		s.Log.Info("server: shutting down")
	}
	listener.Close()
	s.wg.Wait()
	if s.Log != nil {
		s.Log.Info("server: shutdown complete")
	}
	return nil
}

// runReplicaClient runs the replica handshake and command stream against
// ReplicaOf, logging and returning if the master connection drops; it does
// not retry, matching the scope of a single handshake attempt per spec.
func (s *Server) runReplicaClient() {
	_, port, err := net.SplitHostPort(s.Addr)
	if err != nil {
		port = s.Addr
	}
	client := &replication.Client{
		MasterAddr: s.ReplicaOf,
		ListenPort: port,
		Keyspace:   s.keyspace,
		Waiters:    s.waiters,
		Log:        s.Log,
	}
	if err := client.Run(); err != nil && s.Log != nil {
		s.Log.Warn("replication: %s", err)
	}
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.Log != nil {
				s.Log.Warn("server: accept: %s", err)
			}
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := session.New(conn, session.Options{
		Keyspace: s.keyspace,
		Waiters:  s.waiters,
		ExecLock: &s.execLock,
		Replicas: s.replicas,
		ReplID:   s.replID,
		EmptyRDB: s.emptyRDB,
		Log:      s.Log,
	})
	sess.Serve()
}
