package probe

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/provider"
	"github/chapool/wallet-provider/internal/util/command"
)

func newBridge() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Checks that the configured host answers eth_chainId",
		Long:  `Exits non-zero when the host cannot be reached or answers with an error.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool(verboseFlag)

			return command.WithProvider(cmd.Context(), cfg, func(ctx context.Context, p *provider.Provider) error {
				if !p.IsConnected() {
					return errors.New("bridge unavailable")
				}

				if _, err := p.Request(ctx, provider.RequestArguments{Method: provider.MethodChainID}); err != nil {
					return errors.Wrap(err, "host did not answer eth_chainId")
				}

				if verbose {
					log.Info().Str("chain_id", p.ChainID()).Msg("Bridge is healthy")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Log the chain id on success")

	return cmd
}
