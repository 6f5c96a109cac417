package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mxbridge/internal/app"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the bridge until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			wire, err := app.NewWire(ctx, cfg)
			if err != nil {
				return err
			}
			defer wire.Close()

			return wire.Run(ctx)
		},
	}
}
