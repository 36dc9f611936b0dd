package node

import "github.com/5jayarama/raftkv/src/raft_state"

// applyCommand folds one committed entry into the key/value store. Last
// write wins per key.
func applyCommand(node *Node, command raft_state.Command) {
	node.ApplicationDatabase[command.Key] = command.Value
}

// lookupValue returns the stored value, or the empty string for an absent
// key. Clients cannot distinguish the two; the wire format has no not-found
// shape.
func lookupValue(node *Node, key string) string {
	return node.ApplicationDatabase[key]
}
