package command_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/devhost"
	"github/chapool/wallet-provider/internal/provider"
	"github/chapool/wallet-provider/internal/test"
	"github/chapool/wallet-provider/internal/util/command"
)

func TestWithProvider(t *testing.T) {
	cfg := config.Service{
		Provider: test.DefaultProviderConfig(),
		Host:     test.DefaultHostConfig(),
	}

	var testError = errors.New("test error")

	resultErr := command.WithProvider(t.Context(), cfg, func(ctx context.Context, p *provider.Provider) error {
		result, err := p.Request(ctx, provider.RequestArguments{Method: provider.MethodChainID})
		require.NoError(t, err)
		assert.JSONEq(t, `"0x1"`, string(result))
		assert.Equal(t, "0x1", p.ChainID())

		return testError
	})

	assert.Equal(t, testError, resultErr)
}

func TestWithProviderOverHTTP(t *testing.T) {
	test.WithTestServer(t, func(s *devhost.Server) {
		srv := httptest.NewServer(s.Echo)
		defer srv.Close()

		cfg := config.Service{
			Provider: test.DefaultProviderConfig(),
			Bridge:   config.Bridge{URL: srv.URL + "/bridge"},
		}

		err := command.WithProvider(t.Context(), cfg, func(ctx context.Context, p *provider.Provider) error {
			accounts, err := p.Enable(ctx)
			require.NoError(t, err)
			assert.Len(t, accounts, 2)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestWithProviderRejectsBrokenHost(t *testing.T) {
	cfg := config.Service{Provider: test.DefaultProviderConfig()}

	err := command.WithProvider(t.Context(), cfg, func(_ context.Context, _ *provider.Provider) error {
		t.Fatal("callback must not run without a host")
		return nil
	})
	require.Error(t, err)
}

func TestNewSubcommandGroup(t *testing.T) {
	var ran bool
	child := &cobra.Command{
		Use: "child",
		Run: func(_ *cobra.Command, _ []string) { ran = true },
	}

	group := command.NewSubcommandGroup("group", child)
	assert.Equal(t, "group", group.Name())
	require.Len(t, group.Commands(), 1)

	group.SetArgs([]string{"child"})
	require.NoError(t, group.Execute())
	assert.True(t, ran)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "wallet.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("provider:\n  name: From File\n"), 0o600))

	var loaded config.Service
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			loaded, err = command.LoadConfig(cmd)
			return err
		},
	}
	cmd.Flags().String(command.ConfigFlag, "", "")
	cmd.Flags().StringSlice(command.EnvFileFlag, nil, "")
	cmd.SetArgs([]string{"--" + command.ConfigFlag, configFile, "--" + command.EnvFileFlag, filepath.Join(dir, "missing.env")})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "From File", loaded.Provider.Name)
	assert.Equal(t, "walletBridge", loaded.Provider.BridgeName)
}
