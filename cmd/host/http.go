package host

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/devhost"
	"github/chapool/wallet-provider/internal/util/command"
)

const (
	listenFlag      = "listen"
	shutdownTimeout = 10 * time.Second
)

func newHTTP() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the development host over HTTP",
		Long: `Serves bridge requests on POST /bridge, readiness on GET /-/ready and
Prometheus metrics on GET /metrics. HTTP hosts cannot push events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if listen, _ := cmd.Flags().GetString(listenFlag); listen != "" {
				cfg.Host.ListenAddress = listen
			}
			if cfg.Host.ListenAddress == "" {
				return errors.New("no listen address configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, cleanup, err := devhost.InitNewServer(ctx, cfg.Host, cfg.Logger)
			if err != nil {
				return err
			}
			defer cleanup()

			errs := make(chan error, 1)
			go func() {
				errs <- s.Start()
			}()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down development host")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := s.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, "failed to shut down server")
			}
			return nil
		},
	}

	cmd.Flags().String(listenFlag, "", "Listen address, overrides WALLET_HOST_LISTEN_ADDRESS")

	return cmd
}
