package node

import (
	"time"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// transportMock records outbound messages and replays a scripted inbox.
type transportMock struct {
	inbox []wire_messages.Message
	sent  []wire_messages.Message
}

func (mock *transportMock) Send(msg wire_messages.Message) error {
	msg.Envelope().Type = msg.MessageType()
	mock.sent = append(mock.sent, msg)
	return nil
}

func (mock *transportMock) Receive(wait time.Duration) (wire_messages.Message, bool) {
	if len(mock.inbox) == 0 {
		return nil, false
	}
	msg := mock.inbox[0]
	mock.inbox = mock.inbox[1:]
	return msg, true
}

func (mock *transportMock) sentVoteRequests() []*wire_messages.VoteRequest {
	var requests []*wire_messages.VoteRequest
	for _, msg := range mock.sent {
		if request, ok := msg.(*wire_messages.VoteRequest); ok {
			requests = append(requests, request)
		}
	}
	return requests
}

func (mock *transportMock) sentAppendEntries() []*wire_messages.AppendEntry {
	var commands []*wire_messages.AppendEntry
	for _, msg := range mock.sent {
		if command, ok := msg.(*wire_messages.AppendEntry); ok {
			commands = append(commands, command)
		}
	}
	return commands
}

func (mock *transportMock) sentUpdates() []*wire_messages.Update {
	var updates []*wire_messages.Update
	for _, msg := range mock.sent {
		if update, ok := msg.(*wire_messages.Update); ok {
			updates = append(updates, update)
		}
	}
	return updates
}

func (mock *transportMock) sentOks() []*wire_messages.Ok {
	var oks []*wire_messages.Ok
	for _, msg := range mock.sent {
		if ok, isOk := msg.(*wire_messages.Ok); isOk {
			oks = append(oks, ok)
		}
	}
	return oks
}

func (mock *transportMock) sentRedirects() []*wire_messages.Redirect {
	var redirects []*wire_messages.Redirect
	for _, msg := range mock.sent {
		if redirect, ok := msg.(*wire_messages.Redirect); ok {
			redirects = append(redirects, redirect)
		}
	}
	return redirects
}

func (mock *transportMock) lastSent() wire_messages.Message {
	if len(mock.sent) == 0 {
		return nil
	}
	return mock.sent[len(mock.sent)-1]
}

func (mock *transportMock) reset() {
	mock.sent = nil
}

// clockMock is a manual clock; tests advance it explicitly.
type clockMock struct {
	current time.Time
}

func (mock *clockMock) Now() time.Time {
	return mock.current
}

func (mock *clockMock) advance(duration time.Duration) {
	mock.current = mock.current.Add(duration)
}

func setupTestConfig() {
	config.Defaults()
	config.Config.ReplicaIds = []string{"0000", "0001", "0002", "0003", "0004"}
}

func createTestNode(id string) (*Node, *transportMock, *clockMock) {
	setupTestConfig()

	transport := &transportMock{}
	clock := &clockMock{current: time.Unix(1000, 0)}
	logs := make(chan logging.LoggerEntry, 1000)
	node := CreateNode(id, transport, clock, logging.CreateLogger("[TEST]", logs))

	// Tests don't drain the log channel; keep it from filling up.
	go func() {
		for range logs {
		}
	}()

	return node, transport, clock
}
