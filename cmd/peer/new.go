package main

import (
	"fmt"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/ui"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a room with a random id and wait in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		room := domain.NewRoomID()
		fmt.Fprintln(cmd.OutOrStdout(), ui.MutedStyle.Render("Share: ")+shareLink(peerCfg.ServerURL, room))
		return runCall(cmd.Context(), peerCfg, string(room))
	},
}
