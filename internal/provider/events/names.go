// Package events implements the named-event bus shared by the provider and the
// page scope. Listeners run synchronously and are isolated from each other.
package events

// Provider events.
const (
	AccountsChanged = "accountsChanged"
	ChainChanged    = "chainChanged"
	Connect         = "connect"
	Disconnect      = "disconnect"
	Message         = "message"
)

// Page-scope signals.
const (
	RequestProvider     = "eip6963:requestProvider"
	AnnounceProvider    = "eip6963:announceProvider"
	ProviderInitialized = "ethereum#initialized"
)
