package cli

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/5jayarama/raftkv/src/config"
	"github.com/5jayarama/raftkv/src/logging"
	"github.com/5jayarama/raftkv/src/node"
	"github.com/5jayarama/raftkv/src/timer"
)

type appContext struct {
	nodes             []*node.Node
	nodesById         map[string]*node.Node
	networkController *networkController
	logs              chan logging.LoggerEntry
}

// StartCli runs the whole cluster in-process over the controllable network
// and drives it from a terminal UI.
func StartCli() {
	logs := make(chan logging.LoggerEntry, 1000)
	controller := createNetworkController(logging.CreateLogger("[NETWORK]", logs))

	context := &appContext{
		nodes:             make([]*node.Node, 0, len(config.Config.ReplicaIds)),
		nodesById:         make(map[string]*node.Node),
		networkController: controller,
		logs:              logs,
	}

	for _, replicaId := range config.Config.ReplicaIds {
		transport := &controllableTransport{
			nodeId:     replicaId,
			controller: controller,
		}
		logger := logging.CreateLogger(fmt.Sprintf("[NODE %s]", replicaId), logs)

		replica := node.CreateNode(replicaId, transport, timer.SystemClock{}, logger)
		context.nodes = append(context.nodes, replica)
		context.nodesById[replicaId] = replica

		go node.StartProcessingLoop(replica, make(chan struct{}))
	}

	app, appQuit := setupApp(context)

	if err := app.Run(); err != nil {
		panic(any(err))
	}

	close(appQuit)
}

func setupApp(context *appContext) (*tview.Application, chan struct{}) {
	flex := tview.NewFlex()
	flex.SetDirection(tview.FlexRow)

	nodesStateTextView := tview.NewTextView()
	nodesStateTextView.SetBorder(true).SetTitle("Replicas State")
	flex.AddItem(nodesStateTextView, 0, 2, false)

	configTextView := tview.NewTextView()
	configTextView.SetBorder(true).SetTitle("Config")
	flex.AddItem(configTextView, 3, 0, false)

	logsTextView := tview.NewTextView()
	logsTextView.SetBorder(true).SetTitle("Logs")
	logsTextView.SetDynamicColors(true)
	logsTextView.SetScrollable(true)
	flex.AddItem(logsTextView, 0, 3, false)

	inputField := tview.NewInputField()
	inputField.SetBorder(true).SetTitle("Command (type 'help' for the list)")
	flex.AddItem(inputField, 3, 0, true)

	app := tview.NewApplication()
	app.SetRoot(flex, true)
	app.SetFocus(inputField)

	quit := make(chan struct{})

	go renderLogs(context.logs, logsTextView, quit)
	go listenForUserCommands(inputField, context, quit)
	go listenForClientReplies(context, quit)

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				app.QueueUpdateDraw(func() {
					renderNodesState(context.nodes, nodesStateTextView)
					renderConfig(context, configTextView)
				})
			case <-quit:
				return
			}
		}
	}()

	return app, quit
}
