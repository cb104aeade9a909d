package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"relayrpc/backlog"
	"relayrpc/client"
	"relayrpc/rpc"
	"relayrpc/runner"
)

func newClientCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "client",
		Short: "Run the demo's Client Engine and issue calls against it",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a relaydemo config file")

	root.AddCommand(newGreetCommand(&configPath))
	root.AddCommand(newAddCommand(&configPath))
	root.AddCommand(newDivideCommand(&configPath))
	root.AddCommand(newRunCommand(&configPath))
	return root
}

// startEngine brings up a Client Engine against the configured server,
// optionally with handlers registered so the server can call back in.
func startEngine(configPath string, handlers []runner.Handler) (*client.Engine, *demoConfig, error) {
	cfg, err := loadDemoConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	engine := client.New()
	auth := func(req *http.Request) error {
		req.Header.Set("X-Client-Id", cfg.ClientID)
		return nil
	}
	clientConfig := rpc.RpcClientConfig{ClientID: cfg.ClientID, ServerBaseURL: cfg.ServerURL}
	if err := engine.Start(handlers, clientConfig, auth, backlog.NewMemoryBacklog()); err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func newGreetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "greet [name]",
		Short: "Call SayHello on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := startEngine(*configPath, nil)
			if err != nil {
				return err
			}
			defer engine.Stop()

			name, _ := json.Marshal(args[0])
			result, err := engine.ExecuteOnServer("SayHello", []json.RawMessage{name}, 0, rpc.RetryNone)
			if err != nil {
				return err
			}
			fmt.Println(string(result))
			return nil
		},
	}
}

func newAddCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add [a] [b]",
		Short: "Call AddNumbers on the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTwoInts(*configPath, "AddNumbers", args)
		},
	}
}

func newDivideCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "divide [a] [b]",
		Short: "Call DivideNumbers on the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTwoInts(*configPath, "DivideNumbers", args)
		},
	}
}

func callTwoInts(configPath, method string, args []string) error {
	engine, _, err := startEngine(configPath, nil)
	if err != nil {
		return err
	}
	defer engine.Stop()

	// args arrive as strings on the command line but the demo handlers
	// expect JSON numbers.
	var ai, bi int
	fmt.Sscanf(args[0], "%d", &ai)
	fmt.Sscanf(args[1], "%d", &bi)
	a, _ := json.Marshal(ai)
	b, _ := json.Marshal(bi)

	result, err := engine.ExecuteOnServer(method, []json.RawMessage{a, b}, 0, rpc.RetryNone)
	if err != nil {
		return err
	}
	fmt.Println(string(result))
	return nil
}

// newRunCommand starts a long-lived client that accepts server-initiated
// Notify calls and sends a RetryWhenOnline Heartbeat on an interval,
// demonstrating RetryWhenOnline's latest-writer-wins behavior across a
// simulated network flap (kill the server, watch heartbeats queue up
// locally, restart it). Two heartbeats are delivered on reconnect: the one
// that was already in flight when the server went down, which stays at the
// head of the queue and is resent, and the latest of those queued behind
// it; the ones in between are replaced and never delivered.
func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a long-lived client that heartbeats and accepts server callbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, err := startEngine(*configPath, clientHandlers())
			if err != nil {
				return err
			}
			defer engine.Stop()

			period := time.Duration(cfg.HeartbeatPeriod) * time.Millisecond
			if period <= 0 {
				period = 5 * time.Second
			}

			fmt.Printf("relaydemo: client %s heartbeating every %s, Ctrl-C to stop\n", cfg.ClientID, period)
			for {
				result, err := engine.ExecuteOnServer("Heartbeat", nil, 2000, rpc.RetryWhenOnline)
				if err != nil {
					fmt.Printf("relaydemo: heartbeat failed: %v\n", err)
				} else {
					fmt.Printf("relaydemo: heartbeat -> %s\n", result)
				}
				time.Sleep(period)
			}
		},
	}
}
