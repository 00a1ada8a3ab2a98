package test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/devhost"
)

// DefaultHostConfig derives two accounts from the standard test mnemonic on
// mainnet, auto-approving account requests.
func DefaultHostConfig() config.Host {
	return config.Host{
		//nolint:dupword // Standard BIP39 test mnemonic
		Mnemonic:     "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		AccountCount: 2,
		ChainID:      "0x1",
		AutoApprove:  true,
	}
}

// NewTestDevHost creates a development host with its own metrics registry.
func NewTestDevHost(t *testing.T, cfg config.Host, opts ...devhost.Option) *devhost.Host {
	t.Helper()

	opts = append([]devhost.Option{devhost.WithRegisterer(prometheus.NewRegistry())}, opts...)
	h, err := devhost.New(t.Context(), cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create development host: %v", err)
	}
	t.Cleanup(h.Close)

	return h
}

// WithTestDevHost runs closure with a host built from DefaultHostConfig.
func WithTestDevHost(t *testing.T, closure func(h *devhost.Host)) {
	t.Helper()
	closure(NewTestDevHost(t, DefaultHostConfig()))
}

// WithTestServer runs closure with an HTTP server around a default host.
func WithTestServer(t *testing.T, closure func(s *devhost.Server)) {
	t.Helper()

	s, cleanup, err := devhost.InitNewServer(t.Context(), DefaultHostConfig(), config.Logger{RequestLevel: zerolog.DebugLevel})
	if err != nil {
		t.Fatalf("failed to create development host server: %v", err)
	}
	t.Cleanup(cleanup)

	closure(s)
}

// PerformRequest sends a request through the server's echo instance.
func PerformRequest(t *testing.T, s *devhost.Server, method string, path string, body []byte, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)

	return res
}
