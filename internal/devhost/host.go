// Package devhost is a development implementation of the native wallet host. It
// derives accounts from a mnemonic, answers provider requests, signs messages and
// transactions, and pushes account and chain changes to connected providers.
package devhost

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/devhost/keys"
	"github/chapool/wallet-provider/internal/devhost/upstream"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/events"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"

	jsonRPCVersion = "2.0"
)

var nullID = json.RawMessage("null")

// Forwarder answers the methods the host does not implement itself.
type Forwarder interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

type chainIDSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// PushFunc receives host-initiated events.
type PushFunc func(event string, data any)

// Option configures a Host.
type Option func(*Host)

// WithForwarder uses f for unknown methods instead of dialling the configured
// upstream URLs.
func WithForwarder(f Forwarder) Option {
	return func(h *Host) {
		h.forwarder = f
	}
}

// WithFixtures uses f instead of the configured fixtures file.
func WithFixtures(f Fixtures) Option {
	return func(h *Host) {
		h.fixtures = f
	}
}

// WithRegisterer registers the host metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Host) {
		h.metrics = newMetrics(reg)
	}
}

// Host answers bridge requests. It is safe for concurrent use.
type Host struct {
	cfg       config.Host
	keyring   *keys.Keyring
	fixtures  Fixtures
	forwarder Forwarder
	closeFn   func()
	sessionID string
	metrics   *metrics
	logger    zerolog.Logger

	mu         sync.RWMutex
	chainID    *big.Int
	selected   int
	approved   bool
	pushers    map[uint64]PushFunc
	nextPusher uint64
}

// New derives the host accounts from cfg and prepares fixtures and upstream
// forwarding. The seed is wiped once the accounts are derived.
func New(ctx context.Context, cfg config.Host, opts ...Option) (*Host, error) {
	mnemonic := cfg.Mnemonic
	if cfg.KeystorePath != "" {
		var err error
		if mnemonic, err = keys.ReadKeystore(cfg.KeystorePath, cfg.KeystorePassword); err != nil {
			return nil, err
		}
	}

	seeds := keys.NewSeedManager()
	if err := seeds.Initialize(mnemonic, cfg.Passphrase); err != nil {
		return nil, errors.Wrap(err, "failed to initialize seed")
	}
	defer seeds.Clear()

	keyring, err := keys.NewKeyring(seeds, max(cfg.AccountCount, 1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive accounts")
	}

	h := &Host{
		cfg:       cfg,
		keyring:   keyring,
		sessionID: uuid.NewString(),
		pushers:   make(map[uint64]PushFunc),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = newMetrics(nil)
	}
	h.logger = log.With().Str("component", "devhost").Str("session", h.sessionID).Logger()

	if h.fixtures == nil && cfg.FixturesPath != "" {
		h.fixtures, err = LoadFixtures(cfg.FixturesPath)
		if err != nil {
			return nil, err
		}
	}

	if h.forwarder == nil && len(cfg.UpstreamURLs) > 0 {
		client, err := upstream.Dial(ctx, cfg.UpstreamURLs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect upstream")
		}
		h.forwarder = client
		h.closeFn = client.Close
	}

	h.chainID, err = h.initialChainID(ctx)
	if err != nil {
		h.Close()
		return nil, err
	}

	h.logger.Info().
		Int("accounts", len(keyring.Accounts())).
		Str("chain_id", hexutil.EncodeBig(h.chainID)).
		Int("fixtures", len(h.fixtures)).
		Bool("upstream", h.forwarder != nil).
		Msg("Development host ready")

	return h, nil
}

func (h *Host) initialChainID(ctx context.Context) (*big.Int, error) {
	if h.cfg.ChainID != "" {
		chainID, err := hexutil.DecodeBig(h.cfg.ChainID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid chain id %q", h.cfg.ChainID)
		}
		return chainID, nil
	}

	if source, ok := h.forwarder.(chainIDSource); ok {
		chainID, err := source.ChainID(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get chain id from upstream")
		}
		return chainID, nil
	}

	return big.NewInt(1), nil
}

// Close releases upstream connections opened by New.
func (h *Host) Close() {
	if h.closeFn != nil {
		h.closeFn()
	}
}

// SessionID identifies this host run in logs.
func (h *Host) SessionID() string {
	return h.sessionID
}

// Accounts returns the derived accounts.
func (h *Host) Accounts() []keys.Account {
	return h.keyring.Accounts()
}

// ChainID returns the active chain id in hex.
func (h *Host) ChainID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return hexutil.EncodeBig(h.chainID)
}

// OnPush registers fn for host events. Call the returned function to unregister.
func (h *Host) OnPush(fn PushFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextPusher++
	id := h.nextPusher
	h.pushers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.pushers, id)
	}
}

func (h *Host) push(event string, data any) {
	h.mu.RLock()
	fns := make([]PushFunc, 0, len(h.pushers))
	for _, fn := range h.pushers {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	h.metrics.pushes.WithLabelValues(event).Inc()
	h.logger.Debug().Str("event", event).Int("receivers", len(fns)).Msg("Pushing host event")

	for _, fn := range fns {
		fn(event, data)
	}
}

// SelectAccount makes the index-th account the selected one. Connected pages are
// told through accountsChanged.
func (h *Host) SelectAccount(index int) error {
	h.mu.Lock()
	if index < 0 || index >= len(h.keyring.Accounts()) {
		h.mu.Unlock()
		return errors.Errorf("account index %d out of range", index)
	}
	if h.selected == index {
		h.mu.Unlock()
		return nil
	}
	h.selected = index
	approved := h.approved
	accounts := h.addressesLocked()
	h.mu.Unlock()

	if approved {
		h.push(events.AccountsChanged, accounts)
	}
	return nil
}

// SwitchChain changes the active chain and pushes chainChanged when it differs.
func (h *Host) SwitchChain(chainID string) error {
	id, err := hexutil.DecodeBig(chainID)
	if err != nil {
		return invalidParams("invalid chain id %q", chainID)
	}

	h.mu.Lock()
	if h.chainID.Cmp(id) == 0 {
		h.mu.Unlock()
		return nil
	}
	h.chainID = id
	h.mu.Unlock()

	h.push(events.ChainChanged, hexutil.EncodeBig(id))
	return nil
}

// Revoke withdraws the page's account permission and pushes an empty account list.
func (h *Host) Revoke() {
	h.mu.Lock()
	if !h.approved {
		h.mu.Unlock()
		return
	}
	h.approved = false
	h.mu.Unlock()

	h.push(events.AccountsChanged, []string{})
}

// Disconnect tells connected providers that the host can no longer serve requests.
func (h *Host) Disconnect() {
	h.push(events.Disconnect, bridge.NewRPCError(bridge.CodeDisconnected, "The host is disconnected.", nil))
}

// addressesLocked lists account addresses with the selected one first.
func (h *Host) addressesLocked() []string {
	accounts := h.keyring.Accounts()
	addresses := make([]string, 0, len(accounts))
	addresses = append(addresses, accounts[h.selected].Address.Hex())
	for i, account := range accounts {
		if i != h.selected {
			addresses = append(addresses, account.Address.Hex())
		}
	}
	return addresses
}

type call struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type reply struct {
	ID      json.RawMessage  `json:"id"`
	JSONRPC string           `json:"jsonrpc"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *bridge.RPCError `json:"error,omitempty"`
}

// Handle answers one encoded request with an encoded response envelope carrying
// the request id.
func (h *Host) Handle(ctx context.Context, payload []byte) []byte {
	var req call
	if err := json.Unmarshal(payload, &req); err != nil || req.Method == "" {
		h.logger.Warn().Err(err).Msg("Rejecting undecodable request")
		return h.encode(reply{ID: nullID, Error: bridge.NewRPCError(bridge.CodeInvalidRequest, "invalid request", nil)})
	}
	if len(req.ID) == 0 {
		req.ID = nullID
	}

	start := time.Now()
	result, err := h.dispatch(ctx, req.Method, req.Params)
	if err == nil {
		var encoded json.RawMessage
		encoded, err = encodeResult(result)
		if err == nil {
			h.metrics.requests.WithLabelValues(req.Method, outcomeOK).Inc()
			h.logger.Debug().Str("method", req.Method).Dur("duration", time.Since(start)).Msg("Request answered")
			return h.encode(reply{ID: req.ID, Result: encoded})
		}
	}

	rpcErr := toRPCError(err)
	h.metrics.requests.WithLabelValues(req.Method, outcomeError).Inc()
	h.logger.Debug().Str("method", req.Method).Int("code", rpcErr.Code).Str("message", rpcErr.Message).Msg("Request failed")

	return h.encode(reply{ID: req.ID, Error: rpcErr})
}

func (h *Host) encode(r reply) []byte {
	r.JSONRPC = jsonRPCVersion
	data, err := json.Marshal(r)
	if err != nil {
		// Only error data can fail to encode; answer without it.
		h.logger.Error().Err(err).Msg("Failed to encode reply")
		data, _ = json.Marshal(reply{
			ID:      r.ID,
			JSONRPC: jsonRPCVersion,
			Error:   bridge.NewRPCError(bridge.CodeInternal, "failed to encode reply", nil),
		})
	}
	return data
}

func encodeResult(result any) (json.RawMessage, error) {
	if raw, ok := result.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return raw, nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode result")
	}
	return data, nil
}

func (h *Host) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if result, ok, err := h.fixtures.answer(method); ok {
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	switch method {
	case "eth_accounts":
		return h.exposedAccounts(), nil
	case "eth_requestAccounts":
		return h.requestAccounts()
	case "eth_chainId":
		return h.ChainID(), nil
	case "net_version":
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.chainID.String(), nil
	case "wallet_switchEthereumChain":
		return nil, h.switchChainRequest(params)
	case "wallet_revokePermissions":
		h.Revoke()
		return nil, nil
	case "personal_sign":
		return h.personalSign(params)
	case "eth_sign":
		return h.ethSign(params)
	case "eth_signTransaction":
		return h.signTransaction(params)
	}

	if h.forwarder != nil {
		result, err := h.forwarder.Call(ctx, method, params)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, bridge.NewRPCError(bridge.CodeUnsupportedMethod, fmt.Sprintf("method %s is not supported", method), nil)
}

func (h *Host) exposedAccounts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.approved {
		return []string{}
	}
	return h.addressesLocked()
}

func (h *Host) requestAccounts() ([]string, error) {
	h.mu.Lock()
	if h.approved {
		accounts := h.addressesLocked()
		h.mu.Unlock()
		return accounts, nil
	}
	if !h.cfg.AutoApprove {
		h.mu.Unlock()
		return nil, bridge.NewRPCError(bridge.CodeUserRejected, "User rejected the request.", nil)
	}
	h.approved = true
	accounts := h.addressesLocked()
	h.mu.Unlock()

	h.push(events.AccountsChanged, accounts)
	return accounts, nil
}

func (h *Host) switchChainRequest(params json.RawMessage) error {
	var args []struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 || args[0].ChainID == "" {
		return invalidParams("expected [{chainId}]")
	}
	return h.SwitchChain(args[0].ChainID)
}

func toRPCError(err error) *bridge.RPCError {
	var rpcErr *bridge.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var upstreamErr rpc.Error
	if errors.As(err, &upstreamErr) {
		var data any
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			data = dataErr.ErrorData()
		}
		return bridge.NewRPCError(upstreamErr.ErrorCode(), upstreamErr.Error(), data)
	}

	switch {
	case errors.Is(err, keys.ErrUnknownAccount):
		return bridge.NewRPCError(bridge.CodeUnauthorized, err.Error(), nil)
	case errors.Is(err, keys.ErrChainMismatch):
		return bridge.NewRPCError(bridge.CodeInvalidParams, err.Error(), nil)
	default:
		return bridge.NewRPCError(bridge.CodeInternal, err.Error(), nil)
	}
}

func invalidParams(format string, args ...any) *bridge.RPCError {
	return bridge.NewRPCError(bridge.CodeInvalidParams, fmt.Sprintf(format, args...), nil)
}
