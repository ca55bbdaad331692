package protocol

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []Frame{
		StreamFrame("stdout", "hi\n"),
		ByteStreamFrame("image", "fig-1", []byte{0x89, 0x50, 0x4e, 0x47}),
		ResultFrame([]byte(`5`)),
		ExceptionFrame(UserCodeError, "boom", "trace..."),
		EndFrame(),
	}

	for _, want := range cases {
		encoded, err := want.Encode()
		if err != nil {
			t.Fatalf("Encode(%v): %v", want.Kind, err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%v): %v", want.Kind, err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("kind mismatch: got %v want %v", got.Kind, want.Kind)
		}
		if got.StreamKind != want.StreamKind || got.Text != want.Text || got.ID != want.ID {
			t.Fatalf("field mismatch: got %+v want %+v", got, want)
		}
		if !bytes.Equal(got.Bytes, want.Bytes) {
			t.Fatalf("bytes mismatch: got %v want %v", got.Bytes, want.Bytes)
		}
		if got.ExcType != want.ExcType || got.ExcMessage != want.ExcMessage || got.ExcTraceback != want.ExcTraceback {
			t.Fatalf("exception mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestDecodeShortFrame(t *testing.T) {
	if _, err := Decode(nil); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	if _, err := Decode([]byte{byte(KindByteStream), 0, 0}); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame for truncated byte-stream header, got %v", err)
	}
}

func TestRequestDecodeRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeRequest([]byte(`{"kind":"NOT_A_KIND"}`)); err == nil {
		t.Fatal("expected error for unknown request kind")
	}
}

func TestPayloadStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msgs := [][]byte{[]byte("first"), []byte(""), []byte("third message")}

	for _, m := range msgs {
		if err := WritePayload(&buf, m); err != nil {
			t.Fatalf("WritePayload: %v", err)
		}
	}

	r := bufio.NewReader(&buf)
	for _, want := range msgs {
		got, err := ReadPayload(r)
		if err != nil {
			t.Fatalf("ReadPayload: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}
