package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPayloadSize bounds a single length-prefixed payload read from a worker
// pipe, guarding against a misbehaving subprocess claiming an absurd length.
const MaxPayloadSize = 64 << 20 // 64 MiB

// WritePayload writes a single length-prefixed message to w. Used for the
// broker<->worker channel, which runs over OS pipes (not already
// message-framed like the client-facing ZeroMQ socket) and therefore needs
// an explicit length prefix to recover message boundaries.
func WritePayload(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadPayload reads one length-prefixed message written by WritePayload.
func ReadPayload(r *bufio.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxPayloadSize {
		return nil, fmt.Errorf("protocol: payload of %d bytes exceeds max %d", n, MaxPayloadSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
