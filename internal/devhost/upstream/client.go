// Package upstream forwards read-only JSON-RPC calls the development host does not
// answer itself to one of several upstream nodes.
package upstream

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when no upstream node could be reached.
var ErrUnavailable = errors.New("all upstream nodes are unavailable")

// Client wraps several RPC endpoints and fails over between them. JSON-RPC errors
// returned by a node are passed back as they are; only transport failures move
// on to the next node.
type Client struct {
	urls    []string
	mu      sync.Mutex
	clients []*rpc.Client
	current int
}

// Dial connects to every url. Endpoints that cannot be dialled now are retried
// on use.
func Dial(ctx context.Context, urls []string) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one upstream URL is required")
	}

	c := &Client{
		urls:    urls,
		clients: make([]*rpc.Client, len(urls)),
	}
	connected := 0
	for i, url := range urls {
		client, err := rpc.DialContext(ctx, url)
		if err != nil {
			log.Warn().Str("url", url).Err(err).Msg("Failed to connect to upstream node, will retry on use")
			continue
		}
		c.clients[i] = client
		connected++
	}

	if connected == 0 {
		return nil, errors.New("failed to connect to any upstream node")
	}

	return c, nil
}

// Close closes all node connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, client := range c.clients {
		if client != nil {
			client.Close()
			c.clients[i] = nil
		}
	}
}

// Call forwards method with the encoded params array and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	args, err := splitParams(params)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := range len(c.urls) {
		idx, client, err := c.client(ctx, attempt)
		if err != nil {
			lastErr = err
			continue
		}

		var result json.RawMessage
		err = client.CallContext(ctx, &result, method, args...)
		if err == nil {
			c.promote(idx)
			return result, nil
		}

		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) || ctx.Err() != nil {
			return nil, err
		}

		log.Warn().Str("url", c.urls[idx]).Str("method", method).Err(err).Msg("Upstream node failed, trying next")
		lastErr = err
	}

	return nil, errors.Wrap(ErrUnavailable, errorString(lastErr))
}

// ChainID asks the upstream for its chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	for attempt := range len(c.urls) {
		idx, client, err := c.client(ctx, attempt)
		if err != nil {
			continue
		}

		chainID, err := ethclient.NewClient(client).ChainID(ctx)
		if err != nil {
			log.Warn().Str("url", c.urls[idx]).Err(err).Msg("Upstream chain id lookup failed, trying next")
			continue
		}

		c.promote(idx)
		return chainID, nil
	}

	return nil, ErrUnavailable
}

// client returns the node to use for the given attempt, starting at the last node
// that answered. Nodes that could not be dialled before are dialled again.
func (c *Client) client(ctx context.Context, attempt int) (int, *rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := (c.current + attempt) % len(c.clients)
	if c.clients[idx] != nil {
		return idx, c.clients[idx], nil
	}

	client, err := rpc.DialContext(ctx, c.urls[idx])
	if err != nil {
		return idx, nil, errors.Wrapf(err, "failed to connect to %s", c.urls[idx])
	}
	c.clients[idx] = client

	return idx, client, nil
}

func (c *Client) promote(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = idx
}

// splitParams turns an encoded params array into call arguments. Empty or null
// params mean no arguments.
func splitParams(params json.RawMessage) ([]any, error) {
	if len(params) == 0 || string(params) == "null" {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, errors.Wrap(err, "params must be an array")
	}

	args := make([]any, len(raw))
	for i := range raw {
		args[i] = raw[i]
	}

	return args, nil
}

func errorString(err error) string {
	if err == nil {
		return "no node attempted"
	}
	return err.Error()
}
