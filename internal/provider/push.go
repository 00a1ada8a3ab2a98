package provider

import (
	"encoding/json"

	"github/chapool/wallet-provider/internal/provider/events"
)

// PushFromHost is the entry point for host-initiated changes. Account and chain
// changes go through the same state operations as request results, so both paths
// emit identical events and never emit twice for one change. Other events are
// forwarded to listeners as they are.
func (p *Provider) PushFromHost(event string, payload any) {
	switch event {
	case events.AccountsChanged:
		accounts, ok := accountsFromPayload(payload)
		if !ok {
			p.logger.Warn().Interface("payload", payload).Msg("Ignoring accountsChanged push with non-list payload")
			return
		}
		p.tracker.SetAccounts(accounts)

	case events.ChainChanged:
		chainID, ok := chainIDFromPayload(payload)
		if !ok {
			p.logger.Warn().Interface("payload", payload).Msg("Ignoring chainChanged push with non-string payload")
			return
		}
		p.tracker.SetChainID(chainID)

	case events.Connect:
		p.disconnected.Store(false)
		p.bus.Emit(event, payload)

	case events.Disconnect:
		p.disconnected.Store(true)
		p.bus.Emit(event, payload)

	default:
		p.bus.Emit(event, payload)
	}
}

// accountsFromPayload accepts a list of strings in any of the shapes a host may
// push it in. A nil payload means no accounts.
func accountsFromPayload(payload any) ([]string, bool) {
	switch v := payload.(type) {
	case nil:
		return nil, true
	case []string:
		return v, true
	case []any:
		accounts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			accounts = append(accounts, s)
		}
		return accounts, true
	case json.RawMessage:
		return accountsFromJSON(v)
	case []byte:
		return accountsFromJSON(v)
	default:
		return nil, false
	}
}

func accountsFromJSON(raw []byte) ([]string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	return decodeAccounts(raw)
}

func chainIDFromPayload(payload any) (string, bool) {
	switch v := payload.(type) {
	case string:
		return v, true
	case json.RawMessage:
		return decodeChainID(v)
	case []byte:
		return decodeChainID(v)
	default:
		return "", false
	}
}
