package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/5jayarama/raftkv/src/cli"
	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/node"
	"github.com/5jayarama/raftkv/src/replica_transport"
	"github.com/5jayarama/raftkv/src/timer"
)

func main() {
	config.Defaults()

	args := os.Args[1:]
	if len(args) == 1 && args[0] == "playground" {
		startPlayground()
		return
	}

	if len(args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <port> <id> <peer-id>... | %s playground\n", os.Args[0], os.Args[0])
		os.Exit(1)
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", args[0], err)
		os.Exit(1)
	}
	id := args[1]
	peers := args[2:]

	config.Config.ReplicaIds = append([]string{id}, peers...)

	logs := make(chan logging.LoggerEntry, 1000)
	go logging.StartStderrWriter(logs, make(chan struct{}))

	transport, err := replica_transport.CreateUdpTransport(port, logging.CreateLogger("[NETWORK]", logs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting transport: %v\n", err)
		os.Exit(1)
	}

	replica := node.CreateNode(id, transport, timer.SystemClock{}, logging.CreateLogger(fmt.Sprintf("[NODE %s]", id), logs))
	node.StartProcessingLoop(replica, make(chan struct{}))
}

func startPlayground() {
	// Human-scale timings so state transitions are observable.
	config.Config.ReplicaIds = []string{"0000", "0001", "0002", "0003", "0004"}
	config.Config.ElectionTimeoutMin = 3000
	config.Config.ElectionTimeoutMax = 5000
	config.Config.HeartbeatInterval = 1000
	config.Config.LeaderReceiveWait = 1000
	config.Config.NetworkLatency = 200

	cli.StartCli()
}
