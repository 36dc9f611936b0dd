package node

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/5jayarama/raftkv/src/replica_transport"
	"github.com/5jayarama/raftkv/src/timer"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

type Node struct {
	Id string

	PersistentState raft_state.PersistentState
	VolatileState   raft_state.VolatileState
	LeaderState     raft_state.VolatileLeaderState

	// Key/value store, populated only by applying committed entries in order
	ApplicationDatabase map[string]string

	transport replica_transport.Transport
	clock     timer.Clock
	logger    *logging.Logger

	// Election timer: deadline plus the sampled timeout it was armed with
	electionDeadline time.Time
	electionTimeout  time.Duration
	// Last heartbeat broadcast (leader only)
	lastHeartbeat time.Time

	// Ids of replicas that granted a vote in the current candidacy
	votesReceived mapset.Set[string]
	// Request ids this node appended to its log as leader
	loggedRequests mapset.Set[string]
	// Request ids already answered with an ok
	answeredRequests mapset.Set[string]

	// Client requests queued while no leader is known
	pending []wire_messages.Message
}

func CreateNode(
	id string,
	transport replica_transport.Transport,
	clock timer.Clock,
	logger *logging.Logger,
) *Node {
	node := &Node{
		Id:                  id,
		ApplicationDatabase: make(map[string]string),
		transport:           transport,
		clock:               clock,
		logger:              logger,
		votesReceived:       mapset.NewSet[string](),
		loggedRequests:      mapset.NewSet[string](),
		answeredRequests:    mapset.NewSet[string](),
	}

	node.VolatileState.Role = raft_state.Follower
	node.VolatileState.LeaderId = config.Config.BroadcastId
	node.LeaderState.NextIndex = make(map[string]int)
	node.LeaderState.MatchIndex = make(map[string]int)
	resetElectionTimer(node)

	return node
}

// Restart clears all state, modelling a crash of the in-memory replica.
func (node *Node) Restart() {
	node.PersistentState = raft_state.PersistentState{}
	node.VolatileState = raft_state.VolatileState{
		Role:     raft_state.Follower,
		LeaderId: config.Config.BroadcastId,
	}
	node.LeaderState = raft_state.VolatileLeaderState{
		NextIndex:  make(map[string]int),
		MatchIndex: make(map[string]int),
	}
	node.ApplicationDatabase = make(map[string]string)
	node.votesReceived = mapset.NewSet[string]()
	node.loggedRequests = mapset.NewSet[string]()
	node.answeredRequests = mapset.NewSet[string]()
	node.pending = nil
	resetElectionTimer(node)
}

// StartProcessingLoop runs the replica until quit is closed. Single-threaded:
// one bounded wait on the transport per iteration, then timer-driven actions,
// then at most one message dispatch.
func StartProcessingLoop(node *Node, quit chan struct{}) {
	broadcastHello(node)

	for {
		select {
		case <-quit:
			return
		default:
		}

		msg, ok := node.transport.Receive(node.receiveWait())

		now := node.clock.Now()
		if node.VolatileState.Role == raft_state.Leader {
			if now.Sub(node.lastHeartbeat) >= heartbeatInterval() {
				broadcastHeartbeat(node)
			}
		} else if !now.Before(node.electionDeadline) {
			startElection(node)
		}

		if ok {
			dispatchMessage(node, msg)
		}
	}
}

func dispatchMessage(node *Node, msg wire_messages.Message) {
	switch m := msg.(type) {
	case *wire_messages.Get:
		handleGet(node, m)
	case *wire_messages.Put:
		handlePut(node, m)
	case *wire_messages.Update:
		handleUpdate(node, m)
	case *wire_messages.VoteRequest:
		handleVoteRequest(node, m)
	case *wire_messages.VoteResponse:
		handleVoteResponse(node, m)
	case *wire_messages.AppendEntry:
		handleAppendEntry(node, m)
	case *wire_messages.AppendEntryResponse:
		handleAppendEntryResponse(node, m)
	case *wire_messages.Hello:
		// peer announcements carry no state
	default:
		node.logger.Logf("ignoring unexpected %s message from %s", msg.MessageType(), msg.Envelope().Src)
	}
}

// receiveWait computes this iteration's bounded wait: time left until the
// next heartbeat tick for a leader, until the election deadline otherwise.
func (node *Node) receiveWait() time.Duration {
	now := node.clock.Now()
	var deadline time.Time
	if node.VolatileState.Role == raft_state.Leader {
		deadline = node.lastHeartbeat.Add(time.Duration(config.Config.LeaderReceiveWait) * time.Millisecond)
	} else {
		deadline = node.electionDeadline
	}

	wait := deadline.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

func (node *Node) peers() []string {
	return lo.Filter(config.Config.ReplicaIds, func(id string, _ int) bool {
		return id != node.Id
	})
}

func (node *Node) header(dst string) wire_messages.Header {
	return wire_messages.Header{
		Src:    node.Id,
		Dst:    dst,
		Leader: node.VolatileState.LeaderId,
	}
}

func (node *Node) send(msg wire_messages.Message) {
	if err := node.transport.Send(msg); err != nil {
		node.logger.Logf("send failed: %v", err)
	}
}

// resetElectionTimer re-samples the randomized timeout and pushes the
// deadline out from now.
func resetElectionTimer(node *Node) {
	node.electionTimeout = timer.ElectionTimeout()
	node.electionDeadline = node.clock.Now().Add(node.electionTimeout)
}

func heartbeatInterval() time.Duration {
	return time.Duration(config.Config.HeartbeatInterval) * time.Millisecond
}

func broadcastHello(node *Node) {
	node.send(&wire_messages.Hello{Header: node.header(config.Config.BroadcastId)})
}

// becomeFollower adopts a newer term, clearing the vote. The caller decides
// whether the sender is a usable leader.
func becomeFollower(node *Node, term int) {
	node.PersistentState.CurrentTerm = term
	node.PersistentState.VotedFor = raft_state.NilVotedFor
	node.VolatileState.Role = raft_state.Follower
	node.VolatileState.LeaderId = config.Config.BroadcastId
	resetElectionTimer(node)
	node.logger.Logf("became follower at term %d", term)
}
