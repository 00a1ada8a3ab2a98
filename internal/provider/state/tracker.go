// Package state owns the provider's selected address and chain id. Every path that
// can change either value goes through Tracker so that change events are emitted
// exactly once per real change.
package state

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github/chapool/wallet-provider/internal/provider/events"
)

// State is a snapshot of the provider state. Empty strings mean "not set".
type State struct {
	SelectedAddress string `json:"selectedAddress"`
	ChainID         string `json:"chainId"`
}

// Kind identifies which part of the state changed.
type Kind int

const (
	AccountsChanged Kind = iota
	ChainChanged
)

// Change is sent to feed subscribers after every emitted change.
type Change struct {
	Kind  Kind
	State State
}

// Tracker holds the state and emits accountsChanged / chainChanged on its bus.
//
// Changes are delivered in the order they were applied. The goroutine that applies
// a change while no delivery is running delivers it, plus any change queued by
// other goroutines or by listeners in the meantime, before returning. A change
// applied during another goroutine's delivery is delivered by that goroutine, so a
// listener may change the state again without deadlocking.
type Tracker struct {
	mu       sync.Mutex
	state    State
	queue    []Change
	draining bool
	bus      *events.Bus
	feed     event.Feed
}

// NewTracker seeds a tracker with initial values; seeding does not emit.
func NewTracker(bus *events.Bus, initial State) *Tracker {
	return &Tracker{state: initial, bus: bus}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SelectedAddress returns the selected address or "".
func (t *Tracker) SelectedAddress() string {
	return t.Snapshot().SelectedAddress
}

// ChainID returns the chain id or "".
func (t *Tracker) ChainID() string {
	return t.Snapshot().ChainID
}

// SetAccounts takes accounts[0] (or none) as the next selected address. When it
// differs case-insensitively from the current one the state is updated and
// accountsChanged is emitted with a single-element list holding the new address,
// or an empty list when none is selected. Reports whether the state changed.
func (t *Tracker) SetAccounts(accounts []string) bool {
	next := ""
	if len(accounts) > 0 {
		next = accounts[0]
	}

	t.mu.Lock()
	if strings.EqualFold(t.state.SelectedAddress, next) {
		t.mu.Unlock()
		return false
	}
	t.state.SelectedAddress = next
	t.commitLocked(Change{Kind: AccountsChanged, State: t.state})

	return true
}

// SetChainID updates the chain id and emits chainChanged when it differs.
func (t *Tracker) SetChainID(chainID string) bool {
	t.mu.Lock()
	if t.state.ChainID == chainID {
		t.mu.Unlock()
		return false
	}
	t.state.ChainID = chainID
	t.commitLocked(Change{Kind: ChainChanged, State: t.state})

	return true
}

// SubscribeChanges delivers every emitted change to ch. Delivery blocks until ch
// accepts, and later changes wait behind it: subscribers must keep ch drained.
func (t *Tracker) SubscribeChanges(ch chan<- Change) event.Subscription {
	return t.feed.Subscribe(ch)
}

// commitLocked queues c and, unless a delivery is already running, delivers the
// queue. Called with t.mu held; returns with it released.
func (t *Tracker) commitLocked(c Change) {
	t.queue = append(t.queue, c)
	if t.draining {
		t.mu.Unlock()
		return
	}

	t.draining = true
	for len(t.queue) > 0 {
		next := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()

		t.deliver(next)

		t.mu.Lock()
	}
	t.draining = false
	t.mu.Unlock()
}

func (t *Tracker) deliver(c Change) {
	switch c.Kind {
	case AccountsChanged:
		payload := []string{}
		if c.State.SelectedAddress != "" {
			payload = []string{c.State.SelectedAddress}
		}
		t.bus.Emit(events.AccountsChanged, payload)
	case ChainChanged:
		t.bus.Emit(events.ChainChanged, c.State.ChainID)
	}
	t.feed.Send(c)
}
