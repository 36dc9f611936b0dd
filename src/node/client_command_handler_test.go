package node

import (
	"testing"

	"github.com/google/uuid"

	"github.com/5jayarama/raftkv/src/raft_state"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

func getFrom(client string, key string, requestId string) *wire_messages.Get {
	return &wire_messages.Get{
		Header:    wire_messages.Header{Src: client, Dst: "0001"},
		Key:       key,
		RequestId: requestId,
	}
}

func TestHandleGet(t *testing.T) {
	t.Run("leader answers from the applied store", func(t *testing.T) {
		node, transport := createLeaderNode(t)
		node.ApplicationDatabase["x"] = "42"

		handleGet(node, getFrom("C000", "x", "m1"))

		oks := transport.sentOks()
		if len(oks) != 1 {
			t.Fatalf("expected one ok, got %d", len(oks))
		}
		if oks[0].Value == nil || *oks[0].Value != "42" {
			t.Errorf("expected value 42, got %v", oks[0].Value)
		}
		if oks[0].RequestId != "m1" {
			t.Errorf("expected MID m1, got %s", oks[0].RequestId)
		}
	})

	t.Run("leader answers an absent key with an empty value", func(t *testing.T) {
		node, transport := createLeaderNode(t)

		handleGet(node, getFrom("C000", "missing", "m1"))

		oks := transport.sentOks()
		if len(oks) != 1 {
			t.Fatalf("expected one ok, got %d", len(oks))
		}
		if oks[0].Value == nil || *oks[0].Value != "" {
			t.Errorf("expected present empty value, got %v", oks[0].Value)
		}
	})

	t.Run("follower with a known leader redirects", func(t *testing.T) {
		node, transport, _ := createTestNode("0001")
		node.VolatileState.LeaderId = "0003"

		handleGet(node, getFrom("C000", "x", "m2"))

		redirects := transport.sentRedirects()
		if len(redirects) != 1 {
			t.Fatalf("expected one redirect, got %d", len(redirects))
		}
		if redirects[0].Leader != "0003" {
			t.Errorf("expected redirect naming leader 0003, got %s", redirects[0].Leader)
		}
		if redirects[0].Dst != "C000" || redirects[0].RequestId != "m2" {
			t.Errorf("expected redirect to C000 for m2, got %s for %s",
				redirects[0].Dst, redirects[0].RequestId)
		}
		if len(node.PersistentState.Log) != 0 {
			t.Error("expected redirect not to touch the log")
		}
	})

	t.Run("follower with no known leader queues the request", func(t *testing.T) {
		node, transport, _ := createTestNode("0001")

		handleGet(node, getFrom("C000", "x", "m3"))

		if len(transport.sent) != 0 {
			t.Error("expected no reply while no leader is known")
		}
		if len(node.pending) != 1 {
			t.Fatalf("expected one queued request, got %d", len(node.pending))
		}
	})
}

func TestPendingQueue(t *testing.T) {
	t.Run("queued requests drain as redirects when a leader announces itself", func(t *testing.T) {
		node, transport, _ := createTestNode("0001")
		requestId := uuid.NewString()

		handlePut(node, putFrom("C000", "k2", "v2", requestId))
		if len(transport.sent) != 0 {
			t.Fatal("expected the request to be queued, not answered")
		}

		handleUpdate(node, &wire_messages.Update{
			Header: wire_messages.Header{Src: "0002", Dst: "0001", Leader: "0002"},
			Term:   1,
		})

		redirects := transport.sentRedirects()
		if len(redirects) != 1 {
			t.Fatalf("expected one redirect, got %d", len(redirects))
		}
		if redirects[0].Leader != "0002" {
			t.Errorf("expected redirect naming 0002, got %s", redirects[0].Leader)
		}
		if redirects[0].RequestId != requestId {
			t.Errorf("expected redirect for %s, got %s", requestId, redirects[0].RequestId)
		}
		if len(node.pending) != 0 {
			t.Errorf("expected queue to be drained, %d left", len(node.pending))
		}
	})

	t.Run("queued requests drain in arrival order", func(t *testing.T) {
		node, transport, _ := createTestNode("0001")

		handlePut(node, putFrom("C000", "a", "1", "m1"))
		handleGet(node, getFrom("C001", "b", "m2"))

		handleUpdate(node, &wire_messages.Update{
			Header: wire_messages.Header{Src: "0002", Dst: "0001", Leader: "0002"},
			Term:   1,
		})

		redirects := transport.sentRedirects()
		if len(redirects) != 2 {
			t.Fatalf("expected two redirects, got %d", len(redirects))
		}
		if redirects[0].RequestId != "m1" || redirects[1].RequestId != "m2" {
			t.Errorf("expected redirects in arrival order, got %s then %s",
				redirects[0].RequestId, redirects[1].RequestId)
		}
	})

	t.Run("winning an election drains the queue towards self", func(t *testing.T) {
		node, transport, _ := createTestNode("0001")

		handlePut(node, putFrom("C000", "k", "v", "m1"))

		startElection(node)
		handleVoteResponse(node, &wire_messages.VoteResponse{
			Header: wire_messages.Header{Src: "0002", Dst: "0001"}, Term: 1, Granted: true,
		})
		handleVoteResponse(node, &wire_messages.VoteResponse{
			Header: wire_messages.Header{Src: "0003", Dst: "0001"}, Term: 1, Granted: true,
		})

		if node.VolatileState.Role != raft_state.Leader {
			t.Fatal("expected node to become leader")
		}
		redirects := transport.sentRedirects()
		if len(redirects) != 1 {
			t.Fatalf("expected one redirect, got %d", len(redirects))
		}
		if redirects[0].Leader != "0001" {
			t.Errorf("expected redirect to self, got %s", redirects[0].Leader)
		}
	})
}
