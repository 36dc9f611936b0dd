package wire_messages

import (
	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/samber/lo"
)

const (
	MsgTypeHello               = "hello"
	MsgTypeGet                 = "get"
	MsgTypePut                 = "put"
	MsgTypeOk                  = "ok"
	MsgTypeRedirect            = "redirect"
	MsgTypeFail                = "fail"
	MsgTypeUpdate              = "update"
	MsgTypeVoteRequest         = "VoteRequest"
	MsgTypeVoteResponse        = "VoteResponse"
	MsgTypeAppendEntry         = "AppendEntry"
	MsgTypeAppendEntryResponse = "AppendEntryResponse"
)

// Header is the envelope every datagram carries.
type Header struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Leader string `json:"leader"`
	Type   string `json:"type"`
}

// Envelope makes any struct embedding Header satisfy the Message interface.
func (header *Header) Envelope() *Header {
	return header
}

// Message is implemented by every wire variant. Dispatch is by type switch
// on the concrete struct; MessageType returns the on-wire type tag.
type Message interface {
	MessageType() string
	Envelope() *Header
}

// Hello is broadcast once at replica start.
type Hello struct {
	Header
}

type Get struct {
	Header
	Key       string `json:"key"`
	RequestId string `json:"MID"`
}

type Put struct {
	Header
	Key       string `json:"key"`
	Value     string `json:"value"`
	RequestId string `json:"MID"`
}

// Ok acknowledges a client request. Value is present only for answered gets;
// a get for an absent key carries an empty (but present) value.
type Ok struct {
	Header
	RequestId string  `json:"MID"`
	Value     *string `json:"value,omitempty"`
}

// Redirect tells a client to resend its request to the leader named in the
// envelope's leader field.
type Redirect struct {
	Header
	RequestId string `json:"MID"`
}

// Fail is reserved on the wire; nothing sends it in normal flows.
type Fail struct {
	Header
	RequestId string `json:"MID"`
}

// Update is the leader heartbeat. It carries no entries.
type Update struct {
	Header
	Term         int `json:"term"`
	CommitLength int `json:"commitlength"`
}

type VoteRequest struct {
	Header
	// Candidate's term
	NewTerm int `json:"newterm"`
	// Id of candidate requesting the vote
	Candidate string `json:"votedfor"`
	// Length of candidate's log
	LastIndex int `json:"lastIndex"`
	// Term of candidate's last log entry, absent when its log is empty
	LastTerm *int `json:"lastTerm,omitempty"`
}

type VoteResponse struct {
	Header
	Term    int  `json:"term"`
	Granted Flag `json:"voted"`
}

type AppendEntry struct {
	Header
	// Leader's term
	Term int `json:"term"`
	// Leader's commit index
	CommitLength int `json:"commitlength"`
	// Entries to store, starting at LastIndex (empty during catch-up probes)
	Entries []Entry `json:"entries"`
	// Length of the log prefix the receiver must already hold
	LastIndex int `json:"lastIndex"`
	// Term of the entry at LastIndex-1, absent when LastIndex is 0
	LastTerm *int `json:"lastTerm,omitempty"`
	// Size of the sender's applied store, informational only
	KvStoreLen int `json:"kvstorelen"`
}

type AppendEntryResponse struct {
	Header
	Term    int  `json:"term"`
	Success Flag `json:"success"`
	// Receiver's log length after reconciliation, present on success
	LogLength *int `json:"loglength,omitempty"`
}

func (*Hello) MessageType() string               { return MsgTypeHello }
func (*Get) MessageType() string                 { return MsgTypeGet }
func (*Put) MessageType() string                 { return MsgTypePut }
func (*Ok) MessageType() string                  { return MsgTypeOk }
func (*Redirect) MessageType() string            { return MsgTypeRedirect }
func (*Fail) MessageType() string                { return MsgTypeFail }
func (*Update) MessageType() string              { return MsgTypeUpdate }
func (*VoteRequest) MessageType() string         { return MsgTypeVoteRequest }
func (*VoteResponse) MessageType() string        { return MsgTypeVoteResponse }
func (*AppendEntry) MessageType() string         { return MsgTypeAppendEntry }
func (*AppendEntryResponse) MessageType() string { return MsgTypeAppendEntryResponse }

// EntriesFromLog converts log entries to their wire shape.
func EntriesFromLog(entries []raft_state.LogEntry) []Entry {
	return lo.Map(entries, func(entry raft_state.LogEntry, _ int) Entry {
		return Entry(entry)
	})
}

// EntriesToLog converts wire entries back to log entries.
func EntriesToLog(entries []Entry) []raft_state.LogEntry {
	return lo.Map(entries, func(entry Entry, _ int) raft_state.LogEntry {
		return raft_state.LogEntry(entry)
	})
}
