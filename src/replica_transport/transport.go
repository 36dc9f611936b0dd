package replica_transport

import (
	"time"

	"github.com/5jayarama/raftkv/src/wire_messages"
)

// Transport sends messages by replica id and waits, boundedly, for inbound
// ones. Datagram semantics: sends may be lost, duplicated, or reordered.
type Transport interface {
	// Send dispatches a single message. Errors are delivery failures the
	// caller may log and ignore; the protocol's retries cover them.
	Send(msg wire_messages.Message) error
	// Receive waits up to the given duration for one message. The second
	// return is false when the wait elapsed (or a datagram was dropped).
	Receive(wait time.Duration) (wire_messages.Message, bool)
}
