package bridge

import (
	"context"
	"encoding/json"
)

// Request is the envelope sent to the host.
type Request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is the envelope received from the host. ID is optional; only the
// stream channel uses it to find the pending call.
type Response struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

// responseError keeps code optional so a missing code can default to internal error.
type responseError struct {
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Push is a host-initiated message on the stream channel.
type Push struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Channel is the host call-and-await primitive. Implementations send payload (an
// encoded Request carrying id) and return whatever the host answered: nil, raw
// bytes, a string, a decoded map or a Response.
type Channel interface {
	Call(ctx context.Context, id uint64, payload []byte) (any, error)
}

// ChannelFunc adapts an ordinary function to Channel.
type ChannelFunc func(ctx context.Context, id uint64, payload []byte) (any, error)

// Call implements Channel.
func (f ChannelFunc) Call(ctx context.Context, id uint64, payload []byte) (any, error) {
	return f(ctx, id, payload)
}

// PushHandler receives host-initiated events.
type PushHandler func(event string, data json.RawMessage)
