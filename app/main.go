package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rsms/go-log"

	"redikv/app/diyredis/server"
)

func main() {
	s := server.New()
	s.Log = log.RootLogger

	var port int
	flag.IntVar(&port, "port", 6379, "the port to listen on")
	flag.StringVar(&s.RdbDir, "dir", "", "the directory in which the rdb file resides")
	flag.StringVar(&s.RdbFilename, "dbfilename", "", "the name of the RDB file")
	flag.StringVar(&s.ReplicaOf, "replicaof", "", "\"host port\" of a master to replicate from")
	flag.Parse()

	s.Addr = fmt.Sprintf(":%d", port)
	if s.ReplicaOf != "" {
		s.ReplicaOf = normalizeReplicaOf(s.ReplicaOf)
	}

	if err := s.LoadRdb(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := s.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// normalizeReplicaOf accepts both "host port" (the traditional Redis
// --replicaof syntax) and "host:port", returning a dial-ready "host:port".
func normalizeReplicaOf(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i] + ":" + s[i+1:]
		}
	}
	return s
}
