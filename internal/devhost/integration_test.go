package devhost_test

import (
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/devhost"
	"github/chapool/wallet-provider/internal/provider"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/events"
	"github/chapool/wallet-provider/internal/test"
)

func TestProviderOverLocalChannel(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		p, _ := test.NewTestProvider(t, h.Channel(), test.DefaultProviderConfig())

		var accountEvents, chainEvents []any
		p.Subscribe(events.AccountsChanged, func(args ...any) error {
			accountEvents = append(accountEvents, args[0])
			return nil
		})
		p.Subscribe(events.ChainChanged, func(args ...any) error {
			chainEvents = append(chainEvents, args[0])
			return nil
		})

		accounts, err := p.Enable(t.Context())
		require.NoError(t, err)
		assert.Equal(t, firstAccount, accounts[0])
		assert.Equal(t, firstAccount, p.SelectedAddress())

		// The host push and the request result describe the same change.
		assert.Len(t, accountEvents, 1)

		require.NoError(t, h.SwitchChain("0x89"))
		assert.Equal(t, "0x89", p.ChainID())
		assert.Equal(t, []any{"0x89"}, chainEvents)

		_, err = p.Request(t.Context(), provider.RequestArguments{Method: provider.MethodChainID})
		require.NoError(t, err)
		assert.Len(t, chainEvents, 1)

		h.Revoke()
		assert.Equal(t, "", p.SelectedAddress())
		assert.Equal(t, []string{}, accountEvents[1])

		h.Disconnect()
		assert.False(t, p.IsConnected())
	})
}

func TestProviderOverStream(t *testing.T) {
	test.WithTestDevHost(t, func(h *devhost.Host) {
		providerEnd, hostEnd := net.Pipe()

		served := make(chan error, 1)
		go func() {
			served <- h.ServeStream(t.Context(), hostEnd, hostEnd)
		}()

		channel := bridge.NewStreamChannel(providerEnd, nil)
		p, _ := test.NewTestProvider(t, channel, test.DefaultProviderConfig())

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := p.Request(t.Context(), provider.RequestArguments{Method: "net_version"})
				assert.NoError(t, err)
				assert.JSONEq(t, `"1"`, string(result))
			}()
		}
		wg.Wait()

		changed := make(chan any, 1)
		p.Subscribe(events.ChainChanged, func(args ...any) error {
			changed <- args[0]
			return nil
		})
		require.NoError(t, h.SwitchChain("0x2105"))

		select {
		case got := <-changed:
			assert.Equal(t, "0x2105", got)
		case <-time.After(time.Second):
			t.Fatal("chainChanged not delivered over the stream")
		}

		require.NoError(t, p.Close())
		_ = hostEnd.Close()

		select {
		case err := <-served:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("ServeStream did not return after the stream closed")
		}
	})
}

func TestProviderOverHTTP(t *testing.T) {
	test.WithTestServer(t, func(s *devhost.Server) {
		srv := httptest.NewServer(s.Echo)
		defer srv.Close()

		p, _ := test.NewTestProvider(t, bridge.NewHTTPChannel(srv.URL+"/bridge"), test.DefaultProviderConfig())

		_, err := p.Request(t.Context(), provider.RequestArguments{Method: provider.MethodRequestAccounts})
		require.NoError(t, err)
		assert.Equal(t, firstAccount, p.SelectedAddress())

		_, err = p.Request(t.Context(), provider.RequestArguments{Method: "eth_getBalance"})
		require.Error(t, err)
		assert.Equal(t, bridge.CodeUnsupportedMethod, bridge.AsRPCError(err).Code)
	})
}
