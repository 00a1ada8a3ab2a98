package provider

import "github/chapool/wallet-provider/internal/provider/window"

// LegacyWeb3 is the object installed as the legacy web3 global.
type LegacyWeb3 struct {
	CurrentProvider *Provider
}

// Install makes the provider the window's global provider unless another one is
// already installed and ForceReplace is off. It also installs the legacy web3
// global when enabled. Reports whether the provider became the global provider.
func (p *Provider) Install() bool {
	installed := p.window.InstallEthereum(p, p.cfg.ForceReplace)

	if p.cfg.EnableLegacyWeb3 {
		p.window.InstallWeb3(&LegacyWeb3{CurrentProvider: p}, p.cfg.ForceReplace)
	}

	if installed {
		p.logger.Info().Str("uuid", p.info.UUID).Msg("Provider installed as global provider")
	} else {
		p.logger.Info().Msg("Global provider already present, leaving it in place")
	}

	return installed
}

// Installed returns the provider currently installed on the window if it is one of
// ours.
func Installed(w *window.Window) (*Provider, bool) {
	p, ok := w.Ethereum().(*Provider)
	return p, ok
}
