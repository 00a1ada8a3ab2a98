package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/util/command"
)

const readinessTimeout = 5 * time.Second

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Checks the readiness endpoint of a running HTTP development host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool(verboseFlag)

			if cfg.Host.ListenAddress == "" {
				return errors.New("no listen address configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), readinessTimeout)
			defer cancel()

			url := "http://" + cfg.Host.ListenAddress + "/-/ready"
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return errors.Wrap(err, "failed to create readiness request")
			}

			res, err := http.DefaultClient.Do(req)
			if err != nil {
				return errors.Wrap(err, "failed to reach host")
			}
			defer res.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
			if res.StatusCode != http.StatusOK {
				return errors.Errorf("host not ready: %d %s", res.StatusCode, body)
			}

			if verbose {
				log.Info().Str("url", url).Msg(string(body))
			}
			return nil
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Log the response on success")

	return cmd
}
