package node

import (
	"sort"

	"github.com/samber/lo"
	"golang.org/x/exp/maps"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// leaderAppend accepts a client put: one log entry per request id, fanned out
// to every peer. The client is answered when the entry commits.
func leaderAppend(node *Node, command *wire_messages.Put) {
	if node.loggedRequests.Contains(command.RequestId) {
		// Replayed request. Re-acknowledge if it already committed,
		// otherwise the in-flight entry will answer it.
		if node.answeredRequests.Contains(command.RequestId) {
			node.send(&wire_messages.Ok{
				Header:    node.header(command.Src),
				RequestId: command.RequestId,
			})
		}
		return
	}

	node.PersistentState.Log = append(node.PersistentState.Log, raft_state.LogEntry{
		Command: raft_state.Command{
			Key:       command.Key,
			Value:     command.Value,
			Client:    command.Src,
			RequestId: command.RequestId,
		},
		Term: node.PersistentState.CurrentTerm,
	})
	node.loggedRequests.Add(command.RequestId)
	node.LeaderState.MatchIndex[node.Id] = len(node.PersistentState.Log)

	for _, peer := range node.peers() {
		sendAppendEntry(node, peer)
	}
}

// sendAppendEntry builds one AppendEntry for the peer from its next index.
// A gap larger than the batch limit sends an empty probe; the response walks
// the peer forward without oversized datagrams.
func sendAppendEntry(node *Node, peer string) {
	log := node.PersistentState.Log
	nextIndex := node.LeaderState.NextIndex[peer]

	var entries []wire_messages.Entry
	if len(log)-nextIndex > config.Config.AppendBatchLimit {
		entries = []wire_messages.Entry{}
	} else {
		entries = wire_messages.EntriesFromLog(lo.Slice(log, nextIndex, len(log)))
	}

	command := wire_messages.AppendEntry{
		Header:       node.header(peer),
		Term:         node.PersistentState.CurrentTerm,
		CommitLength: node.VolatileState.CommitIndex,
		Entries:      entries,
		LastIndex:    nextIndex,
		KvStoreLen:   len(node.ApplicationDatabase),
	}
	if nextIndex > 0 {
		lastTerm := log[nextIndex-1].Term
		command.LastTerm = &lastTerm
	}

	node.send(&command)
}

// broadcastHeartbeat asserts leadership to every peer. Heartbeats carry no
// entries.
func broadcastHeartbeat(node *Node) {
	node.lastHeartbeat = node.clock.Now()
	for _, peer := range node.peers() {
		node.send(&wire_messages.Update{
			Header:       node.header(peer),
			Term:         node.PersistentState.CurrentTerm,
			CommitLength: node.VolatileState.CommitIndex,
		})
	}
}

func handleAppendEntryResponse(node *Node, command *wire_messages.AppendEntryResponse) {
	if command.Term > node.PersistentState.CurrentTerm {
		becomeFollower(node, command.Term)
		return
	}

	if node.VolatileState.Role != raft_state.Leader ||
		command.Term != node.PersistentState.CurrentTerm {
		return
	}

	if bool(command.Success) {
		logLength := 0
		if command.LogLength != nil {
			logLength = *command.LogLength
		}
		node.LeaderState.MatchIndex[command.Src] = logLength
		node.LeaderState.NextIndex[command.Src] = logLength
		advanceCommitIndex(node)
	} else {
		// Walk back one entry and retry until the prefix matches.
		if node.LeaderState.NextIndex[command.Src] > 0 {
			node.LeaderState.NextIndex[command.Src]--
		}
		sendAppendEntry(node, command.Src)
	}
}

// advanceCommitIndex commits up to the highest index replicated on a
// majority, provided that entry is from the current term. Earlier-term
// entries commit with it, never on their own count.
func advanceCommitIndex(node *Node) {
	target := quorumMatchIndex(node)
	if target <= node.VolatileState.CommitIndex ||
		node.PersistentState.Log[target-1].Term != node.PersistentState.CurrentTerm {
		return
	}

	for node.VolatileState.CommitIndex < target {
		entry := node.PersistentState.Log[node.VolatileState.CommitIndex]
		applyCommand(node, entry.Command)
		node.VolatileState.CommitIndex++
		node.logger.Logf("committed entry %d (term %d)", node.VolatileState.CommitIndex, entry.Term)

		acknowledgeCommit(node, entry.Command)
	}
}

// quorumMatchIndex returns the highest log index held by a majority: the
// quorum-th largest value of the match table, self included.
func quorumMatchIndex(node *Node) int {
	indices := maps.Values(matchIndexSnapshot(node))
	sort.Ints(indices)
	return indices[len(indices)-config.QuorumSize()]
}

// matchIndexSnapshot is the peer match table plus this node's own log length.
func matchIndexSnapshot(node *Node) map[string]int {
	matches := maps.Clone(node.LeaderState.MatchIndex)
	matches[node.Id] = len(node.PersistentState.Log)
	return matches
}

// acknowledgeCommit answers the originating client, at most once per request.
// Entries inherited from earlier leaders are not acknowledged here; their
// leader answered, or the client will retry.
func acknowledgeCommit(node *Node, command raft_state.Command) {
	if !node.loggedRequests.Contains(command.RequestId) ||
		node.answeredRequests.Contains(command.RequestId) {
		return
	}

	node.answeredRequests.Add(command.RequestId)
	node.send(&wire_messages.Ok{
		Header:    node.header(command.Client),
		RequestId: command.RequestId,
	})
}
