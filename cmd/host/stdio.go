package host

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/devhost"
	"github/chapool/wallet-provider/internal/util/command"
)

func newStdio() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the development host over framed stdin/stdout",
		Long: `Serves bridge requests as 4-byte little-endian length prefixed JSON frames on
stdin/stdout, the framing used by browser native messaging hosts. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if err := devhost.CheckStdio(os.Stdin); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := devhost.New(ctx, cfg.Host)
			if err != nil {
				return err
			}
			defer h.Close()

			log.Info().Str("session", h.SessionID()).Msg("Serving development host on stdio")

			return h.ServeStream(ctx, os.Stdin, os.Stdout)
		},
	}
}
