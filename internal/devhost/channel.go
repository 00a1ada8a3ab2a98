package devhost

import (
	"context"
	"encoding/json"
	"sync"

	"github/chapool/wallet-provider/internal/provider/bridge"
)

// LocalChannel connects a provider to a host in the same process. Host events
// are delivered synchronously on the goroutine that caused them.
type LocalChannel struct {
	host *Host

	mu     sync.Mutex
	cancel func()
}

// Channel returns a bridge channel to h.
func (h *Host) Channel() *LocalChannel {
	return &LocalChannel{host: h}
}

// Call implements bridge.Channel.
func (c *LocalChannel) Call(ctx context.Context, _ uint64, payload []byte) (any, error) {
	return c.host.Handle(ctx, payload), nil
}

// SetPushHandler subscribes fn to host events, replacing any earlier handler.
func (c *LocalChannel) SetPushHandler(fn bridge.PushHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if fn == nil {
		return
	}

	c.cancel = c.host.OnPush(func(event string, data any) {
		encoded, err := json.Marshal(data)
		if err != nil {
			c.host.logger.Error().Err(err).Str("event", event).Msg("Failed to encode pushed event")
			return
		}
		fn(event, encoded)
	})
}

// Close unsubscribes from host events.
func (c *LocalChannel) Close() error {
	c.SetPushHandler(nil)
	return nil
}
