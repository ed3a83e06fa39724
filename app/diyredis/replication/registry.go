// Package replication implements both halves of the REPLCONF/PSYNC path
// (spec.md §4.G): a master-side registry of replica sinks that write
// commands are fanned out to, and a replica-side client that performs the
// handshake against a master and then streams the resulting commands into
// its own keyspace.
package replication

import (
	"net"
	"sync"

	"github.com/rsms/go-log"
)

// Registry is the master's list of connected replica sinks (spec.md §3,
// "Replica registry"). It satisfies session.Replicas without importing the
// session package, keeping the dependency one-directional (server wires
// both together).
type Registry struct {
	mu    sync.Mutex
	sinks map[net.Conn]struct{}
	log   *log.Logger
}

// NewRegistry returns an empty replica registry. logger may be nil.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{sinks: make(map[net.Conn]struct{}), log: logger}
}

// Register adds conn as a replica sink, to receive future write fan-out.
func (r *Registry) Register(conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[conn] = struct{}{}
}

// Fanout forwards raw verbatim to every registered replica (spec.md §9:
// "forward the original request bytes, not a re-encoded command"). A write
// failure drops that replica; fanout to the others continues (spec.md §4.F
// point 4, "best-effort").
func (r *Registry) Fanout(raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn := range r.sinks {
		if _, err := conn.Write(raw); err != nil {
			delete(r.sinks, conn)
			conn.Close()
			if r.log != nil {
				r.log.Warn("replication: dropping replica %s: %s", conn.RemoteAddr(), err)
			}
		}
	}
}

// Count reports the number of currently registered replicas.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}
