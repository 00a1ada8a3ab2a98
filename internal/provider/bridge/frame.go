package bridge

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single message in either direction.
const MaxFrameSize = 64 << 20

// ErrFrameTooLarge is returned for frames above MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ReadFrame reads one message prefixed by its 4-byte little-endian length, the
// framing used by browser native messaging hosts.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "failed to read frame body")
	}

	return buf, nil
}

// WriteFrame writes payload with its 4-byte little-endian length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	_, err := w.Write(buf)
	return err
}
