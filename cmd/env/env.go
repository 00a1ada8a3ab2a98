package env

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/util/command"
)

const redacted = "<redacted>"

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the effective configuration as JSON",
		Long:  `Prints the configuration after defaults, config file, env files and WALLET_* variables are applied. Secrets are redacted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if cfg.Host.Mnemonic != "" {
				cfg.Host.Mnemonic = redacted
			}
			if cfg.Host.Passphrase != "" {
				cfg.Host.Passphrase = redacted
			}
			if cfg.Host.KeystorePassword != "" {
				cfg.Host.KeystorePassword = redacted
			}

			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to encode config")
			}

			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
}
