// Package bridge carries provider requests to the native host and normalises every
// answer into either a JSON result or an *RPCError.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var nullResult = json.RawMessage("null")

// availability is implemented by channels that can go away after construction.
type availability interface {
	Available() bool
}

// Transport assigns request ids, serialises requests and decodes host responses.
// It is the single place where host answers are turned into results or errors.
type Transport struct {
	channel Channel
	nextID  atomic.Uint64
	metrics *metrics
	logger  zerolog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithRegisterer registers the transport's collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(t *Transport) {
		t.metrics = newMetrics(reg)
	}
}

// WithLogger replaces the transport logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport over channel. A nil channel yields a transport
// whose calls all fail with ErrBridgeUnavailable.
func NewTransport(channel Channel, opts ...Option) *Transport {
	t := &Transport{
		channel: channel,
		logger:  log.With().Str("component", "bridge").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = newMetrics(nil)
	}

	return t
}

// Available reports whether a channel to the host is present.
func (t *Transport) Available() bool {
	if t == nil || t.channel == nil {
		return false
	}
	if a, ok := t.channel.(availability); ok {
		return a.Available()
	}
	return true
}

// NextID returns a fresh request id.
func (t *Transport) NextID() uint64 {
	return t.nextID.Add(1)
}

// Call sends method and params to the host and waits for the outcome. The
// returned error is always an *RPCError.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.Available() {
		t.metrics.observe(method, outcomeUnavailable, 0)
		unavailable := *ErrBridgeUnavailable
		return nil, &unavailable
	}

	req := Request{ID: t.NextID(), Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		t.metrics.observe(method, outcomeError, 0)
		return nil, NewRPCError(CodeInvalidParams, errors.Wrap(err, "failed to encode request").Error(), nil)
	}

	start := time.Now()
	raw, err := t.channel.Call(ctx, req.ID, payload)
	elapsed := time.Since(start)
	if err != nil {
		t.metrics.observe(method, outcomeError, elapsed)
		t.logger.Debug().Err(err).Uint64("id", req.ID).Str("method", method).Msg("Bridge call failed")

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return nil, rpcErr
		}
		return nil, newCallFailedError(err)
	}

	result, err := Decode(raw)
	if err != nil {
		t.metrics.observe(method, outcomeError, elapsed)
		t.logger.Debug().Err(err).Uint64("id", req.ID).Str("method", method).Dur("duration", elapsed).Msg("Host returned error")
		return nil, err
	}

	t.metrics.observe(method, outcomeOK, elapsed)
	t.logger.Debug().Uint64("id", req.ID).Str("method", method).Dur("duration", elapsed).Msg("Bridge call completed")

	return result, nil
}

// Decode normalises a raw host answer. A nil answer is a null result.
func Decode(raw any) (json.RawMessage, error) {
	resp, err := toResponse(raw)
	if err != nil {
		return nil, newMalformedResponseError(err)
	}
	if resp == nil {
		return nullResult, nil
	}

	if resp.Error != nil {
		code := CodeInternal
		if resp.Error.Code != nil {
			code = *resp.Error.Code
		}
		return nil, &RPCError{Code: code, Message: resp.Error.Message, Data: resp.Error.Data}
	}

	if len(resp.Result) == 0 {
		return nullResult, nil
	}

	return resp.Result, nil
}

func toResponse(raw any) (*Response, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *Response:
		return v, nil
	case Response:
		return &v, nil
	case json.RawMessage:
		return unmarshalResponse(v)
	case []byte:
		return unmarshalResponse(v)
	case string:
		return unmarshalResponse([]byte(v))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed to re-encode response")
		}
		return unmarshalResponse(encoded)
	}
}

func unmarshalResponse(data []byte) (*Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullResult) {
		return nil, nil
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}

	return &resp, nil
}
