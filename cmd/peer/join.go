package main

import (
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join <room|link>",
	Short: "Join a room by id or share link",
	Example: `  peer join standup
  peer join "http://localhost:8080/?room=k3x9a1b2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, server, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		if server != "" && serverFlag == "" {
			peerCfg.ServerURL = server
		}
		return runCall(cmd.Context(), peerCfg, room)
	},
}
