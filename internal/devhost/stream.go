package devhost

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github/chapool/wallet-provider/internal/provider/bridge"
)

// streamWriter serialises frames written by concurrent handlers and pushes.
type streamWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *streamWriter) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bridge.WriteFrame(s.w, frame)
}

// ServeStream answers framed requests read from r on w until r reaches EOF or ctx
// is done. Requests are handled concurrently; host events are written to w as
// {event, data} frames in between responses.
func (h *Host) ServeStream(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &streamWriter{w: w}
	stopPush := h.OnPush(func(event string, data any) {
		encoded, err := json.Marshal(data)
		if err != nil {
			h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode pushed event")
			return
		}
		frame, err := json.Marshal(bridge.Push{Event: event, Data: encoded})
		if err != nil {
			h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode push frame")
			return
		}
		if err := out.write(frame); err != nil {
			h.logger.Warn().Err(err).Str("event", event).Msg("Failed to write push frame")
		}
	})
	defer stopPush()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := bridge.ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.logger.Info().Msg("Provider closed the stream")
				return nil
			}
			return errors.Wrap(err, "failed to read request frame")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := out.write(h.Handle(ctx, frame)); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to write response frame")
			}
		}()
	}
}
