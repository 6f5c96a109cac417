package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"mxbridge/internal/config"
)

func generateRegistrationCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate-registration",
		Short: "Mint tokens and write the appservice registration YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			reg := config.GenerateRegistration(cfg)
			if err := reg.Save(out); err != nil {
				return err
			}
			// The minted tokens must land back in the config, or the
			// bridge cannot authenticate against its own registration.
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Printf("Registration written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "registration.yaml", "registration output path")
	return cmd
}
