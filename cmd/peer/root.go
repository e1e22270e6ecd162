package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serverFlag string
	noMedia    bool
	peerCfg    *config.PeerConfig
)

var rootCmd = &cobra.Command{
	Use:   "peer",
	Short: "Headless participant for two-party Duet calls",
	Long: `peer joins a Duet room over the signaling server and negotiates a WebRTC call
with whoever else is in the room. It sends a silent audio track and reports what it receives.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadPeer()
		if err != nil {
			return err
		}
		if serverFlag != "" {
			cfg.ServerURL = serverFlag
		}
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
		peerCfg = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "", "signaling server websocket URL")
	rootCmd.PersistentFlags().BoolVar(&noMedia, "no-media", false, "run without a capture device")
	rootCmd.AddCommand(joinCmd, newCmd)
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
