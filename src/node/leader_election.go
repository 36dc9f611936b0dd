package node

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

func startElection(node *Node) {
	node.PersistentState.CurrentTerm++
	node.PersistentState.VotedFor = node.Id
	node.VolatileState.Role = raft_state.Candidate
	node.VolatileState.LeaderId = config.Config.BroadcastId
	node.votesReceived = mapset.NewSet(node.Id)
	resetElectionTimer(node)

	node.logger.Logf("starting election for term %d", node.PersistentState.CurrentTerm)

	request := wire_messages.VoteRequest{
		NewTerm:   node.PersistentState.CurrentTerm,
		Candidate: node.Id,
		LastIndex: len(node.PersistentState.Log),
	}
	if len(node.PersistentState.Log) > 0 {
		lastTerm := node.PersistentState.LastLogTerm()
		request.LastTerm = &lastTerm
	}

	for _, peer := range node.peers() {
		peerRequest := request
		peerRequest.Header = node.header(peer)
		node.send(&peerRequest)
	}
}

func handleVoteRequest(node *Node, command *wire_messages.VoteRequest) {
	if command.NewTerm > node.PersistentState.CurrentTerm {
		becomeFollower(node, command.NewTerm)
	}

	granted := false
	if command.NewTerm == node.PersistentState.CurrentTerm &&
		(node.PersistentState.VotedFor == raft_state.NilVotedFor ||
			node.PersistentState.VotedFor == command.Candidate) &&
		candidateLogUpToDate(node, command) {
		node.PersistentState.VotedFor = command.Candidate
		granted = true
		resetElectionTimer(node)
		node.logger.Logf("granted vote to %s for term %d", command.Candidate, command.NewTerm)
	}

	node.send(&wire_messages.VoteResponse{
		Header:  node.header(command.Src),
		Term:    node.PersistentState.CurrentTerm,
		Granted: wire_messages.Flag(granted),
	})
}

// candidateLogUpToDate reports whether the candidate's log is at least as
// up-to-date as the local one: strictly newer last term, or same last term
// and at least as long. An empty log has last term 0.
func candidateLogUpToDate(node *Node, command *wire_messages.VoteRequest) bool {
	candidateLastTerm := 0
	if command.LastTerm != nil {
		candidateLastTerm = *command.LastTerm
	}
	localLastTerm := node.PersistentState.LastLogTerm()

	if candidateLastTerm != localLastTerm {
		return candidateLastTerm > localLastTerm
	}
	return command.LastIndex >= len(node.PersistentState.Log)
}

func handleVoteResponse(node *Node, command *wire_messages.VoteResponse) {
	if command.Term > node.PersistentState.CurrentTerm {
		becomeFollower(node, command.Term)
		return
	}

	resetElectionTimer(node)

	if node.VolatileState.Role != raft_state.Candidate ||
		command.Term != node.PersistentState.CurrentTerm ||
		!bool(command.Granted) {
		return
	}

	node.votesReceived.Add(command.Src)
	if node.votesReceived.Cardinality() >= config.QuorumSize() {
		becomeLeader(node)
	}
}

func becomeLeader(node *Node) {
	node.VolatileState.Role = raft_state.Leader
	node.VolatileState.LeaderId = node.Id

	for _, peer := range node.peers() {
		node.LeaderState.NextIndex[peer] = len(node.PersistentState.Log)
		node.LeaderState.MatchIndex[peer] = 0
	}

	node.logger.Logf("became leader for term %d", node.PersistentState.CurrentTerm)

	// Announce leadership immediately, then point queued clients at self.
	broadcastHeartbeat(node)
	drainPending(node)
}
