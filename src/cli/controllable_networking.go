package cli

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// networkController is an in-memory control plane for the playground: it
// routes datagrams between replica inboxes, honoring network splits and
// simulated latency. Messages across a split are dropped silently, like lost
// datagrams.
type networkController struct {
	mutex         sync.Mutex
	networkSplits [][]string
	inboxes       map[string]chan wire_messages.Message
	clientReplies chan wire_messages.Message
	logger        *logging.Logger
}

// controllableTransport is one replica's view of the controller.
type controllableTransport struct {
	nodeId     string
	controller *networkController
}

func createNetworkController(logger *logging.Logger) *networkController {
	controller := networkController{
		inboxes:       make(map[string]chan wire_messages.Message),
		clientReplies: make(chan wire_messages.Message, 1000),
		logger:        logger,
	}

	for _, replicaId := range config.Config.ReplicaIds {
		controller.inboxes[replicaId] = make(chan wire_messages.Message, 1000)
	}

	controller.networkSplits = [][]string{append([]string{}, config.Config.ReplicaIds...)}

	return &controller
}

func (networking *controllableTransport) Send(msg wire_messages.Message) error {
	// Stamp the type tag the way the wire codec would.
	msg.Envelope().Type = msg.MessageType()

	dst := msg.Envelope().Dst
	if dst == config.Config.BroadcastId {
		for _, replicaId := range config.Config.ReplicaIds {
			if replicaId != networking.nodeId {
				networking.controller.deliver(networking.nodeId, replicaId, msg)
			}
		}
		return nil
	}

	networking.controller.deliver(networking.nodeId, dst, msg)
	return nil
}

func (networking *controllableTransport) Receive(wait time.Duration) (wire_messages.Message, bool) {
	inbox := networking.controller.inboxes[networking.nodeId]
	select {
	case msg := <-inbox:
		return msg, true
	case <-time.After(wait):
		return nil, false
	}
}

// deliver routes one message asynchronously after the simulated latency, so
// a replica's single-threaded loop never blocks on its own sends. The jitter
// also yields datagram-style reordering.
func (controller *networkController) deliver(src string, dst string, msg wire_messages.Message) {
	inbox, isReplica := controller.inboxes[dst]
	if isReplica && !controller.canConnect(src, dst) {
		controller.logger.Logf("%s dropped %s (network split)", logPrefix(src, dst), msg.MessageType())
		return
	}

	controller.logger.Logf("%s %s", logPrefix(src, dst), messageToString(msg))

	go func() {
		latency := time.Duration(config.Config.NetworkLatency) * time.Millisecond
		if latency > 0 {
			<-time.After(latency + time.Duration(rand.Intn(int(latency)/4+1)))
		}

		if isReplica {
			inbox <- msg
		} else {
			controller.clientReplies <- msg
		}
	}()
}

// injectClientCommand puts a client request straight into a replica's inbox.
// The playground client sits outside the splits.
func (controller *networkController) injectClientCommand(replicaId string, msg wire_messages.Message) bool {
	inbox, ok := controller.inboxes[replicaId]
	if !ok {
		return false
	}
	msg.Envelope().Type = msg.MessageType()
	inbox <- msg
	return true
}

func (controller *networkController) canConnect(a string, b string) bool {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()

	for _, split := range controller.networkSplits {
		if lo.Contains(split, a) && lo.Contains(split, b) {
			return true
		}
	}

	return false
}

func (controller *networkController) setSplits(splits [][]string) {
	controller.mutex.Lock()
	controller.networkSplits = splits
	controller.mutex.Unlock()
}

func messageToString(msg wire_messages.Message) string {
	switch m := msg.(type) {
	case *wire_messages.VoteRequest:
		lastTerm := 0
		if m.LastTerm != nil {
			lastTerm = *m.LastTerm
		}
		return fmt.Sprintf("VoteRequest(NewTerm: %d Candidate: %s LastIndex: %d LastTerm: %d)",
			m.NewTerm, m.Candidate, m.LastIndex, lastTerm)
	case *wire_messages.VoteResponse:
		return fmt.Sprintf("VoteResponse(Term: %d Voted: %t)", m.Term, bool(m.Granted))
	case *wire_messages.AppendEntry:
		return fmt.Sprintf("AppendEntry(Term: %d LastIndex: %d Entries: %d Commit: %d)",
			m.Term, m.LastIndex, len(m.Entries), m.CommitLength)
	case *wire_messages.AppendEntryResponse:
		return fmt.Sprintf("AppendEntryResponse(Term: %d Success: %t)", m.Term, bool(m.Success))
	case *wire_messages.Update:
		return fmt.Sprintf("Update(Term: %d Commit: %d)", m.Term, m.CommitLength)
	case *wire_messages.Ok:
		if m.Value != nil {
			return fmt.Sprintf("Ok(MID: %s Value: '%s')", m.RequestId, *m.Value)
		}
		return fmt.Sprintf("Ok(MID: %s)", m.RequestId)
	case *wire_messages.Redirect:
		return fmt.Sprintf("Redirect(MID: %s Leader: %s)", m.RequestId, m.Leader)
	default:
		return msg.MessageType()
	}
}

func logPrefix(senderId string, receiverId string) string {
	return fmt.Sprintf("%s->%s", senderId, receiverId)
}
