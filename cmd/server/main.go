// sdae-server: holds a trained stack and evaluates its first encoder layer
// on encrypted client inputs
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"sdae_lib/sdae"
	"sdae_lib/split"
	"sdae_lib/utils"
)

var (
	weightsFile = flag.String("weights", "", "Weights JSON file written by sdae-train")
	addr        = flag.String("addr", "", "TCP listen address (stdin/stdout when empty)")
	workers     = flag.Int("workers", 0, "Concurrent output groups per row (0 = GOMAXPROCS)")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	// stdout may carry the protocol
	utils.Output = os.Stderr

	if *weightsFile == "" {
		fmt.Fprintln(os.Stderr, "Missing -weights")
		os.Exit(1)
	}
	weights, err := utils.LoadWeights(*weightsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading weights: %v\n", err)
		os.Exit(1)
	}
	stack, err := sdae.FromWeights(weights)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error restoring model: %v\n", err)
		os.Exit(1)
	}
	server := split.NewServer(stack, weights.RunID)
	server.Workers = *workers
	log("Serving layer 0 of %v (run %s), host %s", stack.Dims(), weights.RunID, utils.HostSummary())

	if *addr == "" {
		if err := server.Serve(split.NewProtocol(os.Stdin, os.Stdout)); err != nil {
			fmt.Fprintf(os.Stderr, "Session failed: %v\n", err)
			os.Exit(1)
		}
		log("Server done")
		return
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listen: %v\n", err)
		os.Exit(1)
	}
	log("Listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Accept: %v\n", err)
			os.Exit(1)
		}
		log("Client %s connected", conn.RemoteAddr())
		// one session at a time
		if err := serveConn(server, conn); err != nil {
			log("Session with %s failed: %v", conn.RemoteAddr(), err)
		} else {
			log("Session with %s done", conn.RemoteAddr())
		}
	}
}

func serveConn(server *split.Server, conn io.ReadWriteCloser) error {
	defer conn.Close()
	return server.Serve(split.NewProtocol(conn, conn))
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[SERVER] "+format+"\n", args...)
	}
}
