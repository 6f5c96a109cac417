package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"mxbridge/internal/crypto"
	"mxbridge/internal/store"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the account's key fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			boltStore, err := store.NewBolt(cfg.Database.Path, cfg.Database.PickleKey)
			if err != nil {
				return err
			}
			defer boltStore.Close()

			account, ok, err := boltStore.GetAccount()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no account yet, start the bridge once first")
			}

			idFP, err := crypto.IdentityFingerprint(account.IdentityKey())
			if err != nil {
				return err
			}
			signFP, err := crypto.SigningFingerprint(account.SigningKey())
			if err != nil {
				return err
			}
			fmt.Printf("Identity key:  %s\n", account.IdentityKey())
			fmt.Printf("  fingerprint: %s\n", idFP)
			fmt.Printf("Signing key:   %s\n", account.SigningKey())
			fmt.Printf("  fingerprint: %s\n", signFP)
			return nil
		},
	}
}
