package test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/provider"
	"github/chapool/wallet-provider/internal/provider/bridge"
	"github/chapool/wallet-provider/internal/provider/window"
)

// HandlerFunc answers one method on a TestHost.
type HandlerFunc func(params json.RawMessage) (any, *bridge.RPCError)

// TestHost is a scripted in-process host. It answers with encoded response
// envelopes, the same bytes a real host would put on the wire.
type TestHost struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []bridge.Request
}

// NewTestHost returns a host without handlers; unknown methods fail with -32601.
func NewTestHost() *TestHost {
	return &TestHost{handlers: make(map[string]HandlerFunc)}
}

// Handle installs fn for method.
func (h *TestHost) Handle(method string, fn HandlerFunc) *TestHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[method] = fn
	return h
}

// Result makes method answer with result.
func (h *TestHost) Result(method string, result any) *TestHost {
	return h.Handle(method, func(_ json.RawMessage) (any, *bridge.RPCError) {
		return result, nil
	})
}

// Fail makes method answer with the given error.
func (h *TestHost) Fail(method string, code int, message string, data any) *TestHost {
	return h.Handle(method, func(_ json.RawMessage) (any, *bridge.RPCError) {
		return nil, bridge.NewRPCError(code, message, data)
	})
}

// Calls returns the requests received so far.
func (h *TestHost) Calls() []bridge.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	calls := make([]bridge.Request, len(h.calls))
	copy(calls, h.calls)
	return calls
}

// Call implements bridge.Channel.
func (h *TestHost) Call(_ context.Context, _ uint64, payload []byte) (any, error) {
	var req bridge.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.calls = append(h.calls, req)
	handler := h.handlers[req.Method]
	h.mu.Unlock()

	if handler == nil {
		return encode(req.ID, nil, bridge.NewRPCError(bridge.CodeMethodNotFound, "method not found", nil))
	}

	params, err := json.Marshal(req.Params)
	if err != nil {
		return nil, err
	}
	result, rpcErr := handler(params)
	return encode(req.ID, result, rpcErr)
}

func encode(id uint64, result any, rpcErr *bridge.RPCError) ([]byte, error) {
	if rpcErr != nil {
		return json.Marshal(map[string]any{"id": id, "error": rpcErr})
	}
	return json.Marshal(map[string]any{"id": id, "result": result})
}

// NewTestProvider creates a provider on its own window, talking to host. The
// provider is not auto-injected unless cfg says so.
func NewTestProvider(t *testing.T, host bridge.Channel, cfg config.Provider) (*provider.Provider, *window.Window) {
	t.Helper()

	w := window.New()
	opts := []provider.Option{provider.WithWindow(w)}
	if host != nil {
		opts = append(opts, provider.WithChannel(host))
	}

	p := provider.New(cfg, opts...)
	t.Cleanup(func() {
		_ = p.Close()
	})

	return p, w
}

// DefaultProviderConfig is the provider configuration used by tests.
func DefaultProviderConfig() config.Provider {
	return config.Provider{
		Name:             "Test Wallet",
		Icon:             "data:image/svg+xml,<svg/>",
		RDNS:             "com.chapool.wallet.test",
		BridgeName:       "walletBridge",
		AutoInject:       true,
		EnableLegacyWeb3: true,
		EnableEIP6963:    true,
	}
}
