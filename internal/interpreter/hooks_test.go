package interpreter

import (
	"errors"
	"testing"

	"github.com/dop251/goja"

	"github.com/synacktraa/cillow/internal/protocol"
)

func TestConsoleHookCapturesAndRestores(t *testing.T) {
	rt := goja.New()
	var frames []protocol.Frame

	err := WithHooks(rt, []Hook{NewConsoleHook()}, func(f protocol.Frame) {
		frames = append(frames, f)
	}, func() error {
		_, err := rt.RunString(`console.log("hello", 1); console.error("oops");`)
		return err
	})
	if err != nil {
		t.Fatalf("WithHooks returned error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %+v", len(frames), frames)
	}
	if frames[0].StreamKind != "stdout" || frames[0].Text != "hello 1\n" {
		t.Fatalf("unexpected stdout frame: %+v", frames[0])
	}
	if frames[1].StreamKind != "stderr" || frames[1].Text != "oops\n" {
		t.Fatalf("unexpected stderr frame: %+v", frames[1])
	}

	// Outside the scope, console.log must no longer be instrumented — a
	// fresh call to a scope with no hooks should see no stream output.
	frames = nil
	if err := WithHooks(rt, nil, func(protocol.Frame) {}, func() error {
		_, err := rt.RunString(`typeof console === "undefined" || console.log("after restore")`)
		return err
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames after restore, got %+v", frames)
	}
}

func TestWithHooksRestoresOnError(t *testing.T) {
	rt := goja.New()
	prev := rt.Get("console")

	err := WithHooks(rt, []Hook{NewConsoleHook()}, func(protocol.Frame) {}, func() error {
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if rt.Get("console") != prev {
		t.Fatal("console global was not restored after fn returned an error")
	}
}

func TestByteStreamHookDecodesBase64Payload(t *testing.T) {
	rt := goja.New()
	var frames []protocol.Frame

	err := WithHooks(rt, []Hook{NewByteStreamHook("image", "__cillow_emit_image")}, func(f protocol.Frame) {
		frames = append(frames, f)
	}, func() error {
		_, err := rt.RunString(`__cillow_emit_image("aGVsbG8=")`) // base64("hello")
		return err
	})
	if err != nil {
		t.Fatalf("WithHooks returned error: %v", err)
	}
	if len(frames) != 1 || frames[0].Kind != protocol.KindByteStream {
		t.Fatalf("expected one byte-stream frame, got %+v", frames)
	}
	if frames[0].StreamKind != "image" || string(frames[0].Bytes) != "hello" {
		t.Fatalf("unexpected byte-stream frame: %+v", frames[0])
	}
	if frames[0].ID == "" {
		t.Fatal("expected a non-empty correlation id")
	}
}

func TestRegistrySnapshotIsIndependentOfLaterAdds(t *testing.T) {
	r := NewRegistry()
	r.Add(NewConsoleHook())
	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}

	r.Add(NewConsoleHook())
	if len(snap) != 1 {
		t.Fatalf("prior snapshot mutated after later Add: len = %d", len(snap))
	}
	if len(r.Snapshot()) != 2 {
		t.Fatalf("new snapshot len = %d, want 2", len(r.Snapshot()))
	}
}
