package node

import (
	"github.com/samber/lo"

	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// handleAppendEntry is the follower side of replication: adopt the leader,
// check the prefix, reconcile the suffix, catch up commits, and report the
// resulting log length.
func handleAppendEntry(node *Node, command *wire_messages.AppendEntry) {
	if command.Term < node.PersistentState.CurrentTerm {
		replyAppendEntry(node, command.Src, false)
		return
	}

	if command.Term > node.PersistentState.CurrentTerm {
		becomeFollower(node, command.Term)
	}
	node.VolatileState.Role = raft_state.Follower
	node.VolatileState.LeaderId = command.Leader
	resetElectionTimer(node)
	drainPending(node)

	if !prefixMatches(node, command) {
		replyAppendEntry(node, command.Src, false)
		return
	}

	reconcileLog(node, wire_messages.EntriesToLog(command.Entries), command.LastIndex)

	for node.VolatileState.CommitIndex < command.CommitLength &&
		node.VolatileState.CommitIndex < len(node.PersistentState.Log) {
		applyCommand(node, node.PersistentState.Log[node.VolatileState.CommitIndex].Command)
		node.VolatileState.CommitIndex++
	}

	replyAppendEntry(node, command.Src, true)
}

// prefixMatches checks that the local log already holds the leader's prefix:
// long enough, and agreeing on the term of the entry just before the suffix.
func prefixMatches(node *Node, command *wire_messages.AppendEntry) bool {
	log := node.PersistentState.Log
	if len(log) < command.LastIndex {
		return false
	}
	if command.LastIndex == 0 {
		return true
	}

	lastTerm := 0
	if command.LastTerm != nil {
		lastTerm = *command.LastTerm
	}
	return log[command.LastIndex-1].Term == lastTerm
}

// reconcileLog merges the leader's suffix starting at expectedIndex. A local
// suffix that disagrees with the incoming one is truncated; entries already
// present are kept, the rest appended.
func reconcileLog(node *Node, incoming []raft_state.LogEntry, expectedIndex int) {
	log := node.PersistentState.Log

	if len(incoming) > 0 && len(log) > expectedIndex {
		overlap := len(log)
		if expectedIndex+len(incoming) < overlap {
			overlap = expectedIndex + len(incoming)
		}
		if log[overlap-1].Term != incoming[overlap-1-expectedIndex].Term {
			node.logger.Logf("truncating divergent log suffix at %d", expectedIndex)
			node.PersistentState.Log = lo.Slice(log, 0, expectedIndex)
		}
	}

	kept := len(node.PersistentState.Log) - expectedIndex
	if kept < len(incoming) {
		node.PersistentState.Log = append(node.PersistentState.Log, incoming[kept:]...)
	}
}

func replyAppendEntry(node *Node, dst string, success bool) {
	response := wire_messages.AppendEntryResponse{
		Header:  node.header(dst),
		Term:    node.PersistentState.CurrentTerm,
		Success: wire_messages.Flag(success),
	}
	if success {
		logLength := len(node.PersistentState.Log)
		response.LogLength = &logLength
	}
	node.send(&response)
}

// handleUpdate processes a leader heartbeat. A stale leader is rebuffed with
// a failed response so it steps down; a current one resets the election
// timer and resolves any queued client requests.
func handleUpdate(node *Node, command *wire_messages.Update) {
	if command.Term < node.PersistentState.CurrentTerm {
		node.send(&wire_messages.AppendEntryResponse{
			Header:  node.header(command.Src),
			Term:    node.PersistentState.CurrentTerm,
			Success: wire_messages.Flag(false),
		})
		return
	}

	if command.Term > node.PersistentState.CurrentTerm {
		becomeFollower(node, command.Term)
	}
	node.VolatileState.Role = raft_state.Follower
	node.VolatileState.LeaderId = command.Leader
	resetElectionTimer(node)
	drainPending(node)
}
