package replication

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFanoutDeliversToAllSinks(t *testing.T) {
	r := NewRegistry(nil)

	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()
	defer a1.Close()
	defer a2.Close()
	defer b1.Close()
	defer b2.Close()

	r.Register(a1)
	r.Register(b1)
	assert.Equal(t, 2, r.Count())

	go r.Fanout([]byte("*1\r\n$4\r\nPING\r\n"))

	read := func(conn net.Conn) (string, error) {
		buf := make([]byte, 64)
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		return string(buf[:n]), err
	}

	resultA, resultB := make(chan string, 1), make(chan string, 1)
	go func() { s, _ := read(a2); resultA <- s }()
	go func() { s, _ := read(b2); resultB <- s }()

	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", <-resultA)
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", <-resultB)
}

func TestRegistryDropsFailedSink(t *testing.T) {
	r := NewRegistry(nil)

	a1, a2 := net.Pipe()
	a2.Close() // force the next write on a1 to fail
	r.Register(a1)
	require.Equal(t, 1, r.Count())

	r.Fanout([]byte("*1\r\n$4\r\nPING\r\n"))
	assert.Equal(t, 0, r.Count())
}
