package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/provider/discovery"
	"github/chapool/wallet-provider/internal/provider/events"
)

type agent struct {
	seen []discovery.AnnounceDetail
	stop func()
}

func startAgent(signals *events.Bus) *agent {
	a := &agent{}
	a.stop = discovery.Collect(signals, func(d discovery.AnnounceDetail) {
		a.seen = append(a.seen, d)
	})
	discovery.Request(signals)
	return a
}

func TestProviderInfoIsUniquePerInstance(t *testing.T) {
	a := discovery.NewProviderInfo("Wallet", "data:image/svg+xml,", "com.example.wallet")
	b := discovery.NewProviderInfo("Wallet", "data:image/svg+xml,", "com.example.wallet")

	assert.NotEqual(t, a.UUID, b.UUID)
	assert.Equal(t, "com.example.wallet", a.RDNS)
}

func TestAgentBeforeProvider(t *testing.T) {
	signals := events.NewBus()
	agent := startAgent(signals)

	provider := &struct{}{}
	info := discovery.NewProviderInfo("Wallet", "", "com.example.wallet")
	discovery.Start(signals, info, provider)

	require.Len(t, agent.seen, 1)
	assert.Equal(t, info, agent.seen[0].Info)
	assert.Same(t, provider, agent.seen[0].Provider)
}

func TestAgentAfterProvider(t *testing.T) {
	signals := events.NewBus()

	info := discovery.NewProviderInfo("Wallet", "", "com.example.wallet")
	discovery.Start(signals, info, "provider")

	agent := startAgent(signals)

	require.Len(t, agent.seen, 1)
	assert.Equal(t, info.UUID, agent.seen[0].Info.UUID)
}

func TestEveryRequestIsAnswered(t *testing.T) {
	signals := events.NewBus()
	announcer := discovery.Start(signals, discovery.NewProviderInfo("Wallet", "", "x"), "provider")
	agent := startAgent(signals)

	discovery.Request(signals)
	assert.Len(t, agent.seen, 2)
	assert.Equal(t, agent.seen[0].Info, agent.seen[1].Info)

	announcer.Close()
	discovery.Request(signals)
	assert.Len(t, agent.seen, 2)

	agent.stop()
	announcer.Announce()
	assert.Len(t, agent.seen, 2)
}
