// Command relaydemo hosts the greeter, calculator, and heartbeat demos
// built on top of the Client and Server Engines. It exists to exercise
// those engines end to end over a real network socket, the way
// glycerine-rpc25519's cmd/srv and cmd/cli do for that project's transport.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "relaydemo",
		Short: "Demo host for the bidirectional RPC engine",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newClientCommand())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
