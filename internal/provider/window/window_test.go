package window_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/events"
	"github/chapool/wallet-provider/internal/provider/window"
)

func TestInstallEthereum(t *testing.T) {
	w := window.New()

	fired := 0
	w.Signals.Subscribe(events.ProviderInitialized, func(_ ...any) error {
		fired++
		return nil
	})

	first, second := &struct{ name string }{"first"}, &struct{ name string }{"second"}

	assert.True(t, w.InstallEthereum(first, false))
	assert.False(t, w.InstallEthereum(second, false))
	assert.Same(t, first, w.Ethereum())
	assert.Equal(t, 1, fired)

	assert.True(t, w.InstallEthereum(second, true))
	assert.Same(t, second, w.Ethereum())
	assert.Equal(t, 1, fired)
}

func TestUninstallReArms(t *testing.T) {
	w := window.New()

	fired := 0
	w.Signals.Subscribe(events.ProviderInitialized, func(_ ...any) error {
		fired++
		return nil
	})

	w.InstallEthereum("p", false)
	assert.True(t, w.InstallWeb3("legacy", false))
	assert.False(t, w.InstallWeb3("other", false))
	w.Uninstall()

	assert.Nil(t, w.Ethereum())
	assert.Nil(t, w.Web3())

	w.InstallEthereum("p", false)
	assert.Equal(t, 2, fired)
}

func TestGlobalReset(t *testing.T) {
	before := window.Global()
	before.InstallEthereum("p", false)

	after := window.Reset()
	assert.NotSame(t, before, after)
	assert.Same(t, after, window.Global())
	assert.Nil(t, after.Ethereum())
}

func TestNamedBridgeResolvesLazily(t *testing.T) {
	w := window.New()
	ch := w.NamedBridge("walletBridge")
	transport := bridge.NewTransport(ch)

	_, err := transport.Call(t.Context(), "eth_chainId", nil)
	assert.ErrorIs(t, err, bridge.ErrBridgeUnavailable)

	w.RegisterBridge("walletBridge", bridge.ChannelFunc(func(_ context.Context, _ uint64, _ []byte) (any, error) {
		return `{"result":"0x1"}`, nil
	}))

	result, err := transport.Call(t.Context(), "eth_chainId", nil)
	assert.NoError(t, err)
	assert.JSONEq(t, `"0x1"`, string(result))

	w.RegisterBridge("walletBridge", nil)
	assert.Nil(t, w.Bridge("walletBridge"))
	assert.False(t, transport.Available())
}
