package bridge

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// HTTPChannel posts each request envelope to a host endpoint and returns the body.
type HTTPChannel struct {
	URL    string
	Client *http.Client
}

// NewHTTPChannel creates a channel for url using http.DefaultClient.
func NewHTTPChannel(url string) *HTTPChannel {
	return &HTTPChannel{URL: url, Client: http.DefaultClient}
}

// Call implements Channel.
func (c *HTTPChannel) Call(ctx context.Context, _ uint64, payload []byte) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bridge request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach host")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, MaxFrameSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read host response")
	}

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("host responded with status %d", res.StatusCode)
	}

	return body, nil
}
