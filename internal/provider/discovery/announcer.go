// Package discovery implements the multi-wallet announce/request handshake
// (EIP-6963) on a page scope's signal bus.
package discovery

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github/chapool/wallet-provider/internal/provider/events"
)

// ProviderInfo identifies one provider instance to discovery agents.
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	RDNS string `json:"rdns"`
}

// NewProviderInfo builds the descriptor for a new provider instance. The uuid is
// random per instance; collisions are unlikely but it is not a security identifier.
func NewProviderInfo(name, icon, rdns string) ProviderInfo {
	return ProviderInfo{
		UUID: uuid.NewString(),
		Name: name,
		Icon: icon,
		RDNS: rdns,
	}
}

// AnnounceDetail is the payload of the announce signal.
type AnnounceDetail struct {
	Info     ProviderInfo
	Provider any
}

// Announcer answers provider requests on a signal bus for one provider.
type Announcer struct {
	signals  *events.Bus
	detail   AnnounceDetail
	listener *events.Listener
}

// Start announces provider once and keeps re-announcing on every request signal.
func Start(signals *events.Bus, info ProviderInfo, provider any) *Announcer {
	a := &Announcer{
		signals: signals,
		detail:  AnnounceDetail{Info: info, Provider: provider},
	}

	a.listener = signals.Subscribe(events.RequestProvider, func(_ ...any) error {
		a.Announce()
		return nil
	})
	a.Announce()

	log.Debug().Str("uuid", info.UUID).Str("rdns", info.RDNS).Msg("Provider announced")

	return a
}

// Info returns the announced descriptor.
func (a *Announcer) Info() ProviderInfo {
	return a.detail.Info
}

// Announce broadcasts the announce signal.
func (a *Announcer) Announce() {
	a.signals.Emit(events.AnnounceProvider, a.detail)
}

// Close stops answering request signals.
func (a *Announcer) Close() {
	a.signals.RemoveListener(events.RequestProvider, a.listener)
}

// Request fires the request signal, as a discovery agent would.
func Request(signals *events.Bus) {
	signals.Emit(events.RequestProvider)
}

// Collect subscribes to announce signals and passes each detail to fn. Call the
// returned function to stop collecting.
func Collect(signals *events.Bus, fn func(AnnounceDetail)) func() {
	l := signals.Subscribe(events.AnnounceProvider, func(args ...any) error {
		if len(args) == 0 {
			return nil
		}
		if detail, ok := args[0].(AnnounceDetail); ok {
			fn(detail)
		}
		return nil
	})

	return func() {
		signals.RemoveListener(events.AnnounceProvider, l)
	}
}
