package wire_messages

import (
	"encoding/json"
	"fmt"

	"github.com/5jayarama/raftkv/src/raft_state"
)

// Flag is a boolean carried on the wire as the string "true" or "false".
type Flag bool

func (flag Flag) MarshalJSON() ([]byte, error) {
	if flag {
		return []byte(`"true"`), nil
	}
	return []byte(`"false"`), nil
}

func (flag *Flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"true"`, `true`:
		*flag = true
	case `"false"`, `false`:
		*flag = false
	default:
		return fmt.Errorf("invalid flag value %s", data)
	}
	return nil
}

// Entry is a log entry in its wire shape: [[key, value, client, MID], term].
type Entry raft_state.LogEntry

func (entry Entry) MarshalJSON() ([]byte, error) {
	command := [4]string{
		entry.Command.Key,
		entry.Command.Value,
		entry.Command.Client,
		entry.Command.RequestId,
	}
	return json.Marshal([2]interface{}{command, entry.Term})
}

func (entry *Entry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("entry is not a [command, term] pair: %w", err)
	}

	var command [4]string
	if err := json.Unmarshal(pair[0], &command); err != nil {
		return fmt.Errorf("entry command is not [key, value, client, MID]: %w", err)
	}
	if err := json.Unmarshal(pair[1], &entry.Term); err != nil {
		return fmt.Errorf("entry term: %w", err)
	}

	entry.Command = raft_state.Command{
		Key:       command[0],
		Value:     command[1],
		Client:    command[2],
		RequestId: command[3],
	}
	return nil
}

// Encode serializes a message to a single JSON datagram, stamping the
// envelope's type tag from the variant.
func Encode(msg Message) ([]byte, error) {
	msg.Envelope().Type = msg.MessageType()
	return json.Marshal(msg)
}

// Decode parses a datagram into the variant named by its type tag.
func Decode(data []byte) (Message, error) {
	var probe Header
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("malformed datagram: %w", err)
	}

	var msg Message
	switch probe.Type {
	case MsgTypeHello:
		msg = &Hello{}
	case MsgTypeGet:
		msg = &Get{}
	case MsgTypePut:
		msg = &Put{}
	case MsgTypeOk:
		msg = &Ok{}
	case MsgTypeRedirect:
		msg = &Redirect{}
	case MsgTypeFail:
		msg = &Fail{}
	case MsgTypeUpdate:
		msg = &Update{}
	case MsgTypeVoteRequest:
		msg = &VoteRequest{}
	case MsgTypeVoteResponse:
		msg = &VoteResponse{}
	case MsgTypeAppendEntry:
		msg = &AppendEntry{}
	case MsgTypeAppendEntryResponse:
		msg = &AppendEntryResponse{}
	default:
		return nil, fmt.Errorf("unknown message type %q", probe.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("malformed %s message: %w", probe.Type, err)
	}
	return msg, nil
}
