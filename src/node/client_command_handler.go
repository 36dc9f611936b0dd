package node

import (
	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// handleGet answers from the leader's applied store. Reads carry no quorum or
// lease, so a deposed leader that has not yet seen the new term can serve a
// stale value.
func handleGet(node *Node, command *wire_messages.Get) {
	if node.VolatileState.Role == raft_state.Leader {
		value := lookupValue(node, command.Key)
		node.send(&wire_messages.Ok{
			Header:    node.header(command.Src),
			RequestId: command.RequestId,
			Value:     &value,
		})
		return
	}

	redirectOrQueue(node, command, command.RequestId)
}

func handlePut(node *Node, command *wire_messages.Put) {
	if node.VolatileState.Role == raft_state.Leader {
		leaderAppend(node, command)
		return
	}

	redirectOrQueue(node, command, command.RequestId)
}

// redirectOrQueue points the client at the known leader, or queues the
// request until one emerges.
func redirectOrQueue(node *Node, command wire_messages.Message, requestId string) {
	if node.VolatileState.LeaderId != config.Config.BroadcastId {
		sendRedirect(node, command.Envelope().Src, requestId)
		return
	}
	node.pending = append(node.pending, command)
}

// drainPending redirects every queued client request once a leader is known
// (possibly this node itself, after winning an election).
func drainPending(node *Node) {
	if len(node.pending) == 0 || node.VolatileState.LeaderId == config.Config.BroadcastId {
		return
	}

	queued := node.pending
	node.pending = nil
	for _, msg := range queued {
		switch m := msg.(type) {
		case *wire_messages.Get:
			sendRedirect(node, m.Src, m.RequestId)
		case *wire_messages.Put:
			sendRedirect(node, m.Src, m.RequestId)
		}
	}
}

func sendRedirect(node *Node, client string, requestId string) {
	node.send(&wire_messages.Redirect{
		Header:    node.header(client),
		RequestId: requestId,
	})
}
