package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/node"
	"github.com/5jayarama/raftkv/src/raft_state"
)

func renderNodesState(nodes []*node.Node, textView *tview.TextView) {
	writer := textView.BatchWriter()
	writer.Clear()
	defer writer.Close()

	for _, n := range nodes {
		fmt.Fprintf(writer, "NODE: %s  ROLE: %10s  TERM: %2d  VOTED: %4s  COMMIT: %2d  LEADER: %s\n",
			n.Id,
			n.VolatileState.Role,
			n.PersistentState.CurrentTerm,
			votedForToString(n.PersistentState.VotedFor),
			n.VolatileState.CommitIndex,
			n.VolatileState.LeaderId,
		)
		fmt.Fprintf(writer, "LOG: %s\n", logEntriesToString(n.PersistentState.Log))
		fmt.Fprintf(writer, "KV STORE: %s\n", applicationDbToString(n))
		fmt.Fprintf(writer, "\n")
	}
}

func votedForToString(votedFor string) string {
	if votedFor == raft_state.NilVotedFor {
		return "-"
	}
	return votedFor
}

func applicationDbToString(n *node.Node) string {
	keys := make([]string, 0, len(n.ApplicationDatabase))
	for key := range n.ApplicationDatabase {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := "{ "
	for _, key := range keys {
		// ApplicationDatabase is being concurrently updated so the key may no longer be here,
		// it can be ignored silently, next re-render should fix the displayed state
		if value, ok := n.ApplicationDatabase[key]; ok {
			result += fmt.Sprintf("%s: %s ", key, value)
		}
	}
	result += "}"

	return result
}

func renderLogs(logs chan logging.LoggerEntry, textView *tview.TextView, quit chan struct{}) {
	start := time.Now()
	for {
		select {
		case entry := <-logs:
			writer := textView.BatchWriter()
			prefix := logging.FormatTimestamp(start, entry.Timestamp)
			for _, message := range entry.Messages {
				fmt.Fprintf(writer, "[white]%s %s\n", prefix, message)
				prefix = strings.Repeat(" ", len(prefix))
			}
			writer.Close()
		case <-quit:
			return
		}
	}
}

func renderConfig(context *appContext, textView *tview.TextView) {
	writer := textView.BatchWriter()
	writer.Clear()
	defer writer.Close()

	splitsString := ""
	context.networkController.mutex.Lock()
	for _, split := range context.networkController.networkSplits {
		splitsString += strings.Join(split, ",") + " "
	}
	context.networkController.mutex.Unlock()

	fmt.Fprintf(writer,
		"ELECTION TIMEOUT: %d-%dms  HEARTBEAT: %dms  NETWORK LATENCY: %dms  NETWORK SPLITS: %s",
		config.Config.ElectionTimeoutMin, config.Config.ElectionTimeoutMax,
		config.Config.HeartbeatInterval, config.Config.NetworkLatency, splitsString)
}

func logEntriesToString(entries []raft_state.LogEntry) string {
	result := ""
	for _, entry := range entries {
		result += fmt.Sprintf("[T:%d %s='%s']", entry.Term, entry.Command.Key, entry.Command.Value)
	}

	return result
}
