package commands

import (
	"github.com/spf13/cobra"

	"mxbridge/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

func Execute() error {
	root := &cobra.Command{
		Use:   "mxbridge",
		Short: "Matrix appservice bridge with Olm-encrypted messaging",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")

	root.AddCommand(generateRegistrationCmd(), runCmd(), fingerprintCmd())
	return root.Execute()
}

// loadConfig reads the configuration named by --config into cfg.
func loadConfig() error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}
