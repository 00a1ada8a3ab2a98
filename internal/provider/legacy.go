package provider

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github/chapool/wallet-provider/internal/provider/bridge"
)

const jsonRPCVersion = "2.0"

// ErrCallbackRequired is returned by SendAsync without a callback.
var ErrCallbackRequired = errors.New("sendAsync requires a callback")

// Payload is a JSON-RPC request as passed by older libraries.
type Payload struct {
	ID      json.RawMessage `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method"`
	Params  any             `json:"params,omitempty"`
}

// Envelope is the JSON-RPC response handed back to older libraries. Exactly one
// of Result and Error is set.
type Envelope struct {
	ID      json.RawMessage  `json:"id"`
	JSONRPC string           `json:"jsonrpc"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *bridge.RPCError `json:"error,omitempty"`
}

// Callback receives the outcome of the callback-style legacy calls.
type Callback func(err error, resp *Envelope)

// Enable asks the host to expose accounts; same as Request(eth_requestAccounts).
func (p *Provider) Enable(ctx context.Context) ([]string, error) {
	result, err := p.Request(ctx, RequestArguments{Method: MethodRequestAccounts})
	if err != nil {
		return nil, err
	}

	accounts, ok := decodeAccounts(result)
	if !ok {
		return nil, bridge.NewRPCError(bridge.CodeInternal, "unexpected eth_requestAccounts result", string(result))
	}
	return accounts, nil
}

// Send is the method-name form of the legacy send and behaves like Request.
func (p *Provider) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return p.Request(ctx, RequestArguments{Method: method, Params: params})
}

// SendPayload is the payload form of the legacy send. It goes straight to the
// transport, so results do not update provider state. On failure the error
// envelope is returned together with the *bridge.RPCError.
func (p *Provider) SendPayload(ctx context.Context, payload Payload) (*Envelope, error) {
	result, err := p.transport.Call(ctx, payload.Method, payload.Params)
	if err != nil {
		return newErrorEnvelope(payload.ID, err), err
	}

	return &Envelope{ID: payload.ID, JSONRPC: jsonRPCVersion, Result: result}, nil
}

// SendWithCallback is the callback form of the legacy send. cb runs on another
// goroutine with (err, nil) on failure or (nil, envelope) on success.
func (p *Provider) SendWithCallback(ctx context.Context, payload Payload, cb Callback) {
	go func() {
		resp, err := p.SendPayload(ctx, payload)
		if cb == nil {
			return
		}
		if err != nil {
			cb(err, nil)
			return
		}
		cb(nil, resp)
	}()
}

// SendAsync issues payload and reports the envelope to cb on another goroutine.
// On failure cb also receives the error envelope.
func (p *Provider) SendAsync(ctx context.Context, payload Payload, cb Callback) error {
	if cb == nil {
		return ErrCallbackRequired
	}

	go func() {
		resp, err := p.SendPayload(ctx, payload)
		cb(err, resp)
	}()

	return nil
}

func newErrorEnvelope(id json.RawMessage, err error) *Envelope {
	return &Envelope{
		ID:      id,
		JSONRPC: jsonRPCVersion,
		Error:   bridge.AsRPCError(err),
	}
}
