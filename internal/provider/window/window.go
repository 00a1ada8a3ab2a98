// Package window models the page-global scope a provider is installed into: a
// signal bus shared by everything on the page and the global provider slots.
package window

import (
	"context"
	"sync"

	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/events"
)

// Window is one page scope. Slots hold any value because other wallets may have
// installed providers of their own.
type Window struct {
	Signals *events.Bus

	mu          sync.Mutex
	ethereum    any
	web3        any
	initialized bool
	bridges     map[string]bridge.Channel
}

// New creates an empty page scope.
func New() *Window {
	return &Window{
		Signals: events.NewBus(),
		bridges: make(map[string]bridge.Channel),
	}
}

var (
	globalMu sync.Mutex
	global   = New()
)

// Global returns the process-wide page scope.
func Global() *Window {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Ethereum returns the installed page-global provider, or nil.
func (w *Window) Ethereum() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ethereum
}

// Web3 returns the legacy global, or nil.
func (w *Window) Web3() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.web3
}

// InstallWeb3 sets the legacy global when it is empty or force is set.
func (w *Window) InstallWeb3(v any, force bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.web3 != nil && !force {
		return false
	}
	w.web3 = v
	return true
}

// RegisterBridge exposes a host channel under name, the way a native host
// injects its message handler into the page. A nil channel removes it.
func (w *Window) RegisterBridge(name string, ch bridge.Channel) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ch == nil {
		delete(w.bridges, name)
		return
	}
	w.bridges[name] = ch
}

// Bridge returns the channel registered under name, or nil.
func (w *Window) Bridge(name string) bridge.Channel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bridges[name]
}

// NamedBridge resolves the channel registered under name on every call, so a
// provider created before the host attached still reaches it afterwards.
func (w *Window) NamedBridge(name string) bridge.Channel {
	return &namedBridge{window: w, name: name}
}

type namedBridge struct {
	window *Window
	name   string
}

func (b *namedBridge) Available() bool {
	ch := b.window.Bridge(b.name)
	if ch == nil {
		return false
	}
	if a, ok := ch.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

func (b *namedBridge) Call(ctx context.Context, id uint64, payload []byte) (any, error) {
	ch := b.window.Bridge(b.name)
	if ch == nil {
		unavailable := *bridge.ErrBridgeUnavailable
		return nil, &unavailable
	}
	return ch.Call(ctx, id, payload)
}

// InstallEthereum puts p into the global slot when the slot is empty or force is
// set. The first successful install on a window also fires the one-shot
// initialization signal. Reports whether p was installed.
func (w *Window) InstallEthereum(p any, force bool) bool {
	w.mu.Lock()
	if w.ethereum != nil && !force {
		w.mu.Unlock()
		return false
	}
	w.ethereum = p
	fire := !w.initialized
	w.initialized = true
	w.mu.Unlock()

	if fire {
		w.Signals.Emit(events.ProviderInitialized)
	}

	return true
}

// Uninstall clears both provider slots and re-arms the initialization signal.
// Listeners on Signals and registered bridges are kept.
func (w *Window) Uninstall() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ethereum = nil
	w.web3 = nil
	w.initialized = false
}

// Reset replaces the process-wide scope with a fresh one. Intended for tests.
func Reset() *Window {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = New()
	return global
}
