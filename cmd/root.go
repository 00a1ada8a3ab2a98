package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/wallet-provider/cmd/call"
	"github/chapool/wallet-provider/cmd/env"
	"github/chapool/wallet-provider/cmd/host"
	"github/chapool/wallet-provider/cmd/probe"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     config.ModuleName,
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

An EIP-1193 wallet provider shim and a development wallet host it can talk to.
Configured through WALLET_* environment variables, .env files or a config file.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringSlice(command.EnvFileFlag, []string{".env.local", ".env"}, "Env files loaded before reading the configuration")

	// attach the subcommands
	rootCmd.AddCommand(
		call.New(),
		env.New(),
		host.New(),
		probe.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
