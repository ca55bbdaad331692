package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// FrameKind tags the wire form of a ResponseFrame. It is encoded as the
// first byte of every frame so a reader never has to guess which of the two
// serialization modes (structured JSON vs. compact binary) follows.
type FrameKind byte

const (
	KindStream FrameKind = iota + 1
	KindByteStream
	KindResult
	KindException
	KindEnd
)

// ErrShortFrame is returned by Decode when the payload is truncated below
// the minimum length its tag byte implies.
var ErrShortFrame = errors.New("protocol: frame shorter than its tag requires")

// Frame is the tagged union streamed from worker to client (directly, and
// relayed verbatim by the broker). Only the fields relevant to Kind are
// populated.
type Frame struct {
	Kind FrameKind

	// STREAM / BYTE_STREAM
	StreamKind string // "stdout" | "stderr" | "installer" | "image" | "figure" | ...
	Text       string // STREAM
	Bytes      []byte // BYTE_STREAM
	ID         string // BYTE_STREAM, optional correlation id

	// RESULT
	Value json.RawMessage

	// EXCEPTION
	ExcType      ExceptionType
	ExcMessage   string
	ExcTraceback string
}

// structured is the JSON body for every frame kind except BYTE_STREAM.
type structured struct {
	StreamKind   string          `json:"stream_kind,omitempty"`
	Text         string          `json:"text,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
	ExcType      ExceptionType   `json:"type,omitempty"`
	ExcMessage   string          `json:"message,omitempty"`
	ExcTraceback string          `json:"traceback,omitempty"`
}

// byteStreamHeader is the small JSON preamble carried ahead of raw bytes in
// a BYTE_STREAM frame, so the binary payload is never itself JSON-encoded.
type byteStreamHeader struct {
	StreamKind string `json:"stream_kind"`
	ID         string `json:"id,omitempty"`
}

func StreamFrame(kind, text string) Frame {
	return Frame{Kind: KindStream, StreamKind: kind, Text: text}
}

func ByteStreamFrame(kind string, id string, data []byte) Frame {
	return Frame{Kind: KindByteStream, StreamKind: kind, ID: id, Bytes: data}
}

func ResultFrame(value json.RawMessage) Frame {
	return Frame{Kind: KindResult, Value: value}
}

func ExceptionFrame(typ ExceptionType, message, traceback string) Frame {
	return Frame{Kind: KindException, ExcType: typ, ExcMessage: message, ExcTraceback: traceback}
}

func EndFrame() Frame {
	return Frame{Kind: KindEnd}
}

// Encode renders a Frame to its wire form: one tag byte, then either a
// 4-byte big-endian header length followed by the JSON header and raw bytes
// (BYTE_STREAM), or the JSON-encoded structured body (everything else).
func (f Frame) Encode() ([]byte, error) {
	switch f.Kind {
	case KindByteStream:
		header, err := json.Marshal(byteStreamHeader{StreamKind: f.StreamKind, ID: f.ID})
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 1+4+len(header)+len(f.Bytes))
		out = append(out, byte(KindByteStream))
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(header)))
		out = append(out, lenBuf[:]...)
		out = append(out, header...)
		out = append(out, f.Bytes...)
		return out, nil
	case KindStream, KindResult, KindException, KindEnd:
		body := structured{
			StreamKind:   f.StreamKind,
			Text:         f.Text,
			Value:        f.Value,
			ExcType:      f.ExcType,
			ExcMessage:   f.ExcMessage,
			ExcTraceback: f.ExcTraceback,
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 1+len(encoded))
		out = append(out, byte(f.Kind))
		return append(out, encoded...), nil
	default:
		return nil, fmt.Errorf("protocol: unknown frame kind %d", f.Kind)
	}
}

// Decode parses a wire-form frame produced by Encode.
func Decode(payload []byte) (Frame, error) {
	if len(payload) < 1 {
		return Frame{}, ErrShortFrame
	}
	kind := FrameKind(payload[0])
	rest := payload[1:]

	switch kind {
	case KindByteStream:
		if len(rest) < 4 {
			return Frame{}, ErrShortFrame
		}
		headerLen := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(len(rest)) < uint64(headerLen) {
			return Frame{}, ErrShortFrame
		}
		var header byteStreamHeader
		if err := json.Unmarshal(rest[:headerLen], &header); err != nil {
			return Frame{}, err
		}
		data := rest[headerLen:]
		return Frame{Kind: KindByteStream, StreamKind: header.StreamKind, ID: header.ID, Bytes: data}, nil
	case KindStream, KindResult, KindException, KindEnd:
		var body structured
		if len(rest) > 0 {
			if err := json.Unmarshal(rest, &body); err != nil {
				return Frame{}, err
			}
		}
		return Frame{
			Kind:         kind,
			StreamKind:   body.StreamKind,
			Text:         body.Text,
			Value:        body.Value,
			ExcType:      body.ExcType,
			ExcMessage:   body.ExcMessage,
			ExcTraceback: body.ExcTraceback,
		}, nil
	default:
		return Frame{}, fmt.Errorf("protocol: unknown frame kind %d", kind)
	}
}
