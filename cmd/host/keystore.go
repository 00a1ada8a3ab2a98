package host

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/devhost/keys"
	"github/chapool/wallet-provider/internal/util/command"
	"golang.org/x/term"
)

const lightFlag = "light"

func newKeystore() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore <path>",
		Short: "Encrypt the configured mnemonic into a keystore file",
		Long: `Writes host.mnemonic to a new scrypt/AES-128-CTR keystore at <path>. The password is
taken from host.keystore_password or prompted for on the terminal. Point
host.keystore_path at the file to stop keeping the mnemonic in plain config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			password := cfg.Host.KeystorePassword
			if password == "" {
				if password, err = promptPassword(); err != nil {
					return err
				}
			}

			params := keys.StandardScryptParams()
			if light, _ := cmd.Flags().GetBool(lightFlag); light {
				params = keys.LightScryptParams()
			}

			ks, err := keys.WriteKeystore(args[0], cfg.Host.Mnemonic, password, params)
			if err != nil {
				return err
			}

			log.Info().Str("path", args[0]).Str("id", ks.ID).Msg("Keystore written")
			return nil
		},
	}

	cmd.Flags().Bool(lightFlag, false, "Use cheap scrypt parameters (development only)")

	return cmd
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no keystore password configured and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Keystore password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}
	if len(password) == 0 {
		return "", errors.New("empty keystore password")
	}

	return string(password), nil
}
