package cli

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/wire_messages"
)

// playgroundClientId is the src of every injected client request; replies
// addressed to it land in the controller's client channel.
const playgroundClientId = "C000"

func listenForUserCommands(inputField *tview.InputField, context *appContext, quit chan struct{}) {
	logger := logging.CreateLogger("[green][COMMAND[]", context.logs)
	commandsChannel := make(chan string)
	inputField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			command := inputField.GetText()
			if len(command) > 0 {
				commandsChannel <- command
			}
		}
	})

	for {
		select {
		case command := <-commandsChannel:
			handleCommand(command, context, logger)
			inputField.SetText("")
		case <-quit:
			return
		}
	}
}

func listenForClientReplies(context *appContext, quit chan struct{}) {
	logger := logging.CreateLogger("[green][CLIENT[]", context.logs)
	for {
		select {
		case msg := <-context.networkController.clientReplies:
			logger.Logf("%s from %s: %s", msg.MessageType(), msg.Envelope().Src, messageToString(msg))
		case <-quit:
			return
		}
	}
}

func handleCommand(command string, context *appContext, logger *logging.Logger) {
	tokens := strings.Split(command, " ")
	switch tokens[0] {
	case "client":
		if len(tokens) < 4 {
			logInvalidCommand(command, logger)
			return
		}

		replicaId := tokens[1]
		requestId := uuid.NewString()

		var msg wire_messages.Message
		switch {
		case tokens[2] == "get" && len(tokens) == 4:
			msg = &wire_messages.Get{
				Header:    clientHeader(replicaId),
				Key:       tokens[3],
				RequestId: requestId,
			}
		case tokens[2] == "put" && len(tokens) == 5:
			msg = &wire_messages.Put{
				Header:    clientHeader(replicaId),
				Key:       tokens[3],
				Value:     tokens[4],
				RequestId: requestId,
			}
		default:
			logInvalidCommand(command, logger)
			return
		}

		if context.networkController.injectClientCommand(replicaId, msg) {
			logger.Logf("%s (MID: %s)", command, requestId)
		} else {
			logInvalidCommand(command, logger)
		}
	case "node-restart":
		if len(tokens) != 2 {
			logInvalidCommand(command, logger)
			return
		}

		if replica, ok := context.nodesById[tokens[1]]; ok {
			replica.Restart()
			logger.Log(command)
		} else {
			logInvalidCommand(command, logger)
		}
	case "network-splits":
		if len(tokens) < 2 {
			logInvalidCommand(command, logger)
			return
		}
		splits := make([][]string, len(tokens[1:]))
		for i, token := range tokens[1:] {
			splits[i] = strings.Split(token, ",")
		}

		logger.Log(command)
		context.networkController.setSplits(splits)
	case "network-latency", "heartbeat-interval":
		if len(tokens) != 2 {
			logInvalidCommand(command, logger)
			return
		}

		if value, err := strconv.Atoi(tokens[1]); err == nil {
			switch tokens[0] {
			case "network-latency":
				config.Config.NetworkLatency = value
			case "heartbeat-interval":
				config.Config.HeartbeatInterval = value
			}
			logger.Log(command)
		} else {
			logInvalidCommand(command, logger)
		}
	case "election-timeout":
		if len(tokens) != 3 {
			logInvalidCommand(command, logger)
			return
		}

		min, errMin := strconv.Atoi(tokens[1])
		max, errMax := strconv.Atoi(tokens[2])
		if errMin != nil || errMax != nil || max < min {
			logInvalidCommand(command, logger)
			return
		}
		config.Config.ElectionTimeoutMin = min
		config.Config.ElectionTimeoutMax = max
		logger.Log(command)
	case "help":
		logHelp(logger)
	default:
		logInvalidCommand(command, logger)
	}
}

func clientHeader(dst string) wire_messages.Header {
	return wire_messages.Header{
		Src:    playgroundClientId,
		Dst:    dst,
		Leader: config.Config.BroadcastId,
	}
}

func logInvalidCommand(command string, logger *logging.Logger) {
	logger.Logf("'%s' - invalid command", command)
	logHelp(logger)
}

func logHelp(logger *logging.Logger) {
	logger.LogMultiple([]string{
		"Available commands:",
		"client [REPLICA_ID[] get [KEY[] (e.g. client 0001 get x) - sends get to given replica",
		"client [REPLICA_ID[] put [KEY[] [VALUE[] (e.g. client 0001 put x 3) - sends put to given replica",
		"node-restart [REPLICA_ID[] (e.g. node-restart 0001) - restarts given replica (all in-memory state is lost)",
		"network-latency [LATENCY[] (e.g. network-latency 200) - sets simulated latency (in milliseconds)",
		"network-splits [SPLITS[] (e.g network-splits 0000,0001,0002 0003,0004) - partitions replicas into sets that can",
		"                        communicate only within the same set. Use one set with all ids to heal the partition",
		"election-timeout [MIN[] [MAX[] (e.g. election-timeout 3000 5000) - sets election timeout range (in milliseconds)",
		"heartbeat-interval [INTERVAL[] (e.g. heartbeat-interval 1000) - sets leader heartbeat interval (in milliseconds)",
		"help - displays this information",
	})
}
