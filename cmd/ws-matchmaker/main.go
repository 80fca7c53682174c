package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anatoly-dev/go-ws-matchmaker/cmd/ws-matchmaker/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ws-matchmaker",
		Short: "Anonymous WebSocket matchmaking service",
		Long:  "Pairs anonymous WebSocket clients one-to-one and relays WebRTC signaling between partners",
	}

	rootCmd.AddCommand(commands.NewServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
