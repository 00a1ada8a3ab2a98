package command

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/devhost"
	"github/chapool/wallet-provider/internal/provider"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/window"
)

const (
	ConfigFlag  = "config"
	EnvFileFlag = "env-file"
)

// NewSubcommandGroup returns a command that only groups subcommands and prints
// its help when run on its own.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: name + " related subcommands",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// LoadConfig reads the .env files and config file named by the root command's
// persistent flags, applies the logger settings and returns the configuration.
func LoadConfig(cmd *cobra.Command) (config.Service, error) {
	envFiles, err := cmd.Flags().GetStringSlice(EnvFileFlag)
	if err != nil {
		envFiles = []string{".env.local", ".env"}
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return config.Service{}, err
	}

	path, _ := cmd.Flags().GetString(ConfigFlag)
	cfg, err := config.Load(path)
	if err != nil {
		return config.Service{}, err
	}

	cfg.Logger.Apply()

	return cfg, nil
}

// WithProvider creates a provider on a private window, connected to the host
// selected by cfg.Bridge, runs f and tears everything down again. Without a
// configured bridge an in-process development host is used.
func WithProvider(ctx context.Context, cfg config.Service, f func(ctx context.Context, p *provider.Provider) error) error {
	if cfg.Bridge.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bridge.Timeout)
		defer cancel()
	}

	channel, cleanup, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	p := provider.New(cfg.Provider, provider.WithWindow(window.New()), provider.WithChannel(channel))
	defer func() {
		if err := p.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close provider")
		}
	}()

	start := time.Now()
	err = f(ctx, p)
	log.Debug().Dur("duration", time.Since(start)).Str("uuid", p.Info().UUID).Msg("Provider session finished")

	return err
}

//nolint:ireturn // channel kind depends on configuration
func openChannel(ctx context.Context, cfg config.Service) (bridge.Channel, func(), error) {
	switch {
	case cfg.Bridge.URL != "":
		return bridge.NewHTTPChannel(cfg.Bridge.URL), func() {}, nil

	case strings.TrimSpace(cfg.Bridge.Command) != "":
		fields := strings.Fields(cfg.Bridge.Command)
		channel, err := bridge.DialProcess(context.WithoutCancel(ctx), fields[0], fields[1:]...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to start host process")
		}
		return channel, func() {}, nil

	default:
		host, err := devhost.New(ctx, cfg.Host)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to start in-process host")
		}
		return host.Channel(), host.Close, nil
	}
}
