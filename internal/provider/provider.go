// Package provider implements the EIP-1193 provider shim: requests go to the native
// host through a bridge, results that carry account or chain information keep the
// provider state in sync, and state changes are published as events.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/discovery"
	"github/chapool/wallet-provider/internal/provider/events"
	"github/chapool/wallet-provider/internal/provider/state"
	"github/chapool/wallet-provider/internal/provider/window"
)

// Methods whose results update provider state.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
)

// RequestArguments is the argument of Request.
type RequestArguments struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// pushable is implemented by channels that can deliver host-initiated events.
type pushable interface {
	SetPushHandler(h bridge.PushHandler)
}

type options struct {
	window     *window.Window
	channel    bridge.Channel
	registerer prometheus.Registerer
	logger     *zerolog.Logger
}

// Option configures New.
type Option func(*options)

// WithWindow installs and announces the provider on w instead of the global window.
func WithWindow(w *window.Window) Option {
	return func(o *options) {
		o.window = w
	}
}

// WithChannel uses ch instead of the bridge registered on the window under the
// configured bridge name.
func WithChannel(ch bridge.Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}

// WithRegisterer registers bridge metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger sets the logger used for diagnostics, including listener failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Provider is the object exposed to dApp code.
type Provider struct {
	cfg          config.Provider
	window       *window.Window
	bus          *events.Bus
	transport    *bridge.Transport
	tracker      *state.Tracker
	channel      bridge.Channel
	info         discovery.ProviderInfo
	announcer    *discovery.Announcer
	disconnected atomic.Bool
	logger       zerolog.Logger
}

// New creates a provider, announces it for discovery and installs it on the window
// as configured.
func New(cfg config.Provider, opts ...Option) *Provider {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.window == nil {
		o.window = window.Global()
	}

	logger := log.With().Str("component", "provider").Str("rdns", cfg.RDNS).Logger()
	if o.logger != nil {
		logger = *o.logger
	}

	channel := o.channel
	if channel == nil {
		channel = o.window.NamedBridge(cfg.BridgeName)
	}

	transportOpts := []bridge.Option{bridge.WithLogger(logger)}
	if o.registerer != nil {
		transportOpts = append(transportOpts, bridge.WithRegisterer(o.registerer))
	}

	bus := events.NewBus().WithLogger(logger)
	p := &Provider{
		cfg:       cfg,
		window:    o.window,
		bus:       bus,
		transport: bridge.NewTransport(channel, transportOpts...),
		tracker: state.NewTracker(bus, state.State{
			SelectedAddress: cfg.InitialSelectedAddress,
			ChainID:         cfg.InitialChainID,
		}),
		channel: channel,
		info:    discovery.NewProviderInfo(cfg.Name, cfg.Icon, cfg.RDNS),
		logger:  logger,
	}
	if ch, ok := channel.(pushable); ok {
		ch.SetPushHandler(func(event string, data json.RawMessage) {
			p.PushFromHost(event, data)
		})
	}

	if cfg.EnableEIP6963 {
		p.announcer = discovery.Start(o.window.Signals, p.info, p)
	}

	if cfg.AutoInject {
		p.Install()
	}

	return p
}

// Request sends a request to the host. Results of account and chain queries update
// the provider state, and any resulting change events are emitted before Request
// returns. Errors are *bridge.RPCError values and are returned unchanged.
func (p *Provider) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	result, err := p.transport.Call(ctx, args.Method, args.Params)
	if err != nil {
		return nil, err
	}

	p.syncState(args.Method, result)

	return result, nil
}

func (p *Provider) syncState(method string, result json.RawMessage) {
	switch method {
	case MethodRequestAccounts, MethodAccounts:
		if accounts, ok := decodeAccounts(result); ok {
			p.tracker.SetAccounts(accounts)
		}
	case MethodChainID:
		if chainID, ok := decodeChainID(result); ok {
			p.tracker.SetChainID(chainID)
		}
	}
}

// Accounts returns the accounts the host exposes to this page.
func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	result, err := p.Request(ctx, RequestArguments{Method: MethodAccounts})
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(result, &accounts); err != nil {
		return nil, bridge.NewRPCError(bridge.CodeInternal, "unexpected eth_accounts result", string(result))
	}

	return accounts, nil
}

// On registers l for event and returns the provider for chaining.
func (p *Provider) On(event string, l *events.Listener) *Provider {
	p.bus.On(event, l)
	return p
}

// Subscribe registers fn for event and returns its handle.
func (p *Provider) Subscribe(event string, fn events.HandlerFunc) *events.Listener {
	return p.bus.Subscribe(event, fn)
}

// Once registers fn for the next emission of event.
func (p *Provider) Once(event string, fn events.HandlerFunc) *events.Listener {
	return p.bus.Once(event, fn)
}

// RemoveListener unregisters l from event.
func (p *Provider) RemoveListener(event string, l *events.Listener) *Provider {
	p.bus.RemoveListener(event, l)
	return p
}

// SubscribeChanges delivers state changes to ch. ch must be drained: until it
// accepts a change, later events are held back. Responses to requests are not.
func (p *Provider) SubscribeChanges(ch chan<- state.Change) event.Subscription {
	return p.tracker.SubscribeChanges(ch)
}

// SelectedAddress returns the selected address, or "" when none.
func (p *Provider) SelectedAddress() string {
	return p.tracker.SelectedAddress()
}

// ChainID returns the last known chain id, or "".
func (p *Provider) ChainID() string {
	return p.tracker.ChainID()
}

// State returns a snapshot of the provider state.
func (p *Provider) State() state.State {
	return p.tracker.Snapshot()
}

// IsConnected reports whether the host is reachable and has not signalled a disconnect.
func (p *Provider) IsConnected() bool {
	return !p.disconnected.Load() && p.transport.Available()
}

// Info returns the discovery descriptor of this instance.
func (p *Provider) Info() discovery.ProviderInfo {
	return p.info
}

// Providers returns the list of providers behind this object, for libraries that
// look for a providers array.
func (p *Provider) Providers() []*Provider {
	return []*Provider{p}
}

// Close stops answering discovery requests and closes the channel if it can be closed.
func (p *Provider) Close() error {
	if p.announcer != nil {
		p.announcer.Close()
	}
	if closer, ok := p.channel.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func decodeAccounts(raw json.RawMessage) ([]string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, false
	}
	return accounts, true
}

func decodeChainID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}

	var chainID string
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return "", false
	}
	return chainID, true
}
