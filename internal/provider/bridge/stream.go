package bridge

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrChannelClosed is returned for calls made after the stream went away.
var ErrChannelClosed = errors.New("bridge channel closed")

// inbound is the union of a response and a push as seen on the wire.
type inbound struct {
	ID    *uint64         `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type queuedPush struct {
	event string
	data  json.RawMessage
}

// StreamChannel speaks framed JSON over a byte stream (host stdio, pipe, socket).
// Responses are matched to their calls by id through a pending table, so any
// number of calls may be in flight at once. Pushes are handed to the push handler
// in arrival order on a goroutine of their own, so a handler may issue calls on
// the same channel.
type StreamChannel struct {
	conn    io.ReadWriteCloser
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan json.RawMessage
	onPush  PushHandler
	pushes  []queuedPush
	closed  bool
	err     error

	pushReady chan struct{}
	done      chan struct{}
	logger    zerolog.Logger
}

// NewStreamChannel starts reading frames from conn. onPush may be nil and set
// later with SetPushHandler.
func NewStreamChannel(conn io.ReadWriteCloser, onPush PushHandler) *StreamChannel {
	c := &StreamChannel{
		conn:    conn,
		pending: make(map[uint64]chan json.RawMessage),
		onPush:    onPush,
		pushReady: make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    log.With().Str("component", "bridge_stream").Logger(),
	}
	go c.readLoop()
	go c.pushLoop()

	return c
}

// SetPushHandler replaces the handler for host-initiated events.
func (c *StreamChannel) SetPushHandler(h PushHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPush = h
}

// Available reports whether the stream is still open.
func (c *StreamChannel) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Done is closed once the stream has terminated.
func (c *StreamChannel) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the stream terminated, if it has.
func (c *StreamChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call implements Channel.
func (c *StreamChannel) Call(ctx context.Context, id uint64, payload []byte) (any, error) {
	reply := make(chan json.RawMessage, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if _, exists := c.pending[id]; exists {
		c.mu.Unlock()
		return nil, errors.Errorf("request id %d already in flight", id)
	}
	c.pending[id] = reply
	c.mu.Unlock()

	c.writeMu.Lock()
	err := WriteFrame(c.conn, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, errors.Wrap(err, "failed to write request frame")
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, errors.Wrap(ctx.Err(), "bridge call abandoned")
	case <-c.done:
		// The response may have been delivered right before the stream closed.
		select {
		case resp := <-reply:
			return resp, nil
		default:
		}
		return nil, errors.Wrap(c.Err(), ErrChannelClosed.Error())
	}
}

// Close terminates the stream and fails all pending calls.
func (c *StreamChannel) Close() error {
	c.shutdown(ErrChannelClosed)
	return c.conn.Close()
}

func (c *StreamChannel) forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *StreamChannel) shutdown(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.err = reason
	c.pending = make(map[uint64]chan json.RawMessage)
	close(c.done)
}

func (c *StreamChannel) readLoop() {
	for {
		frame, err := ReadFrame(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrChannelClosed
			}
			c.shutdown(err)
			return
		}

		c.dispatch(frame)
	}
}

func (c *StreamChannel) dispatch(frame []byte) {
	var msg inbound
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.logger.Error().Err(err).Int("size", len(frame)).Msg("Dropping undecodable frame from host")
		return
	}

	if msg.ID == nil {
		if msg.Event == "" {
			c.logger.Warn().Msg("Dropping unsolicited host message")
			return
		}

		c.mu.Lock()
		c.pushes = append(c.pushes, queuedPush{event: msg.Event, data: msg.Data})
		c.mu.Unlock()

		select {
		case c.pushReady <- struct{}{}:
		default:
		}
		return
	}

	c.mu.Lock()
	reply, ok := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn().Uint64("id", *msg.ID).Msg("Dropping response for unknown request")
		return
	}
	reply <- json.RawMessage(frame)
}

// pushLoop delivers queued pushes until the stream terminates. Pushes already
// received when it terminates are still delivered.
func (c *StreamChannel) pushLoop() {
	for {
		select {
		case <-c.pushReady:
			c.deliverPushes()
		case <-c.done:
			c.deliverPushes()
			return
		}
	}
}

func (c *StreamChannel) deliverPushes() {
	for {
		c.mu.Lock()
		if len(c.pushes) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.pushes[0]
		c.pushes = c.pushes[1:]
		handler := c.onPush
		c.mu.Unlock()

		if handler == nil {
			c.logger.Warn().Str("event", next.event).Msg("Dropping host push without handler")
			continue
		}
		handler(next.event, next.data)
	}
}
