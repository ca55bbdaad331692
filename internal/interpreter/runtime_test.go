package interpreter

import (
	"context"
	"os"
	"testing"

	"github.com/Scusemua/go-utils/logger"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/protocol"
)

func newTestRuntime() *Runtime {
	return New(logger.NilLogger, identity.Environment(identity.SystemEnvironment), NewRegistry())
}

func dispatchAndCollect(rt *Runtime, req protocol.Request) []protocol.Frame {
	var frames []protocol.Frame
	rt.Dispatch(context.Background(), req, func(f protocol.Frame) {
		frames = append(frames, f)
	})
	return frames
}

func TestRunCodeReturnsTrailingExpressionValue(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: "1 + 2"})

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %+v", len(frames), frames)
	}
	if frames[0].Kind != protocol.KindResult || string(frames[0].Value) != "3" {
		t.Fatalf("unexpected result frame: %+v", frames[0])
	}
	if frames[1].Kind != protocol.KindEnd {
		t.Fatalf("expected END, got %+v", frames[1])
	}
}

func TestRunCodePersistsNamespaceAcrossRequests(t *testing.T) {
	rt := newTestRuntime()
	dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: "var counter = 41;"})

	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: "counter + 1"})
	if string(frames[0].Value) != "42" {
		t.Fatalf("namespace did not persist: %+v", frames[0])
	}
}

func TestRunCodeNoTrailingExpressionYieldsNullResult(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: "var a = 1;"})
	if string(frames[0].Value) != "null" {
		t.Fatalf("expected null result, got %+v", frames[0])
	}
}

func TestRunCodeThrownExceptionBecomesExceptionFrame(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: `throw new Error("boom")`})
	if frames[0].Kind != protocol.KindException || frames[0].ExcType != protocol.UserCodeError {
		t.Fatalf("expected UserCodeError exception, got %+v", frames[0])
	}
}

func TestRunCodeSyntaxErrorBecomesExceptionFrame(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: "this is not valid js {{{"})
	if frames[0].Kind != protocol.KindException {
		t.Fatalf("expected exception frame for syntax error, got %+v", frames[0])
	}
}

func TestRunCodeSyntaxErrorSkipsInstallEvenWithImportToken(t *testing.T) {
	rt := newTestRuntime()
	// "require(" looks like a module import to the regex-based inspector,
	// but the source doesn't parse; compile must fail before any install is
	// attempted, so the only frames are the exception and END.
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: `require("left-pad" {{{`})
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2 (exception, end) with no installer stream: %+v", len(frames), frames)
	}
	if frames[0].Kind != protocol.KindException || frames[0].ExcType != protocol.UserCodeError {
		t.Fatalf("expected UserCodeError exception, got %+v", frames[0])
	}
}

func TestConsoleLogDuringRunCodeEmitsStreamFrames(t *testing.T) {
	registry := NewRegistry()
	registry.Add(NewConsoleHook())
	rt := New(logger.NilLogger, identity.Environment(identity.SystemEnvironment), registry)
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCode, Source: `console.log("hi"); 1`})
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3 (stream, result, end): %+v", len(frames), frames)
	}
	if frames[0].Kind != protocol.KindStream || frames[0].StreamKind != "stdout" || frames[0].Text != "hi\n" {
		t.Fatalf("unexpected stream frame: %+v", frames[0])
	}
}

func TestSetEnvVarsAppliesToProcessEnv(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.SetEnvVars, Vars: map[string]string{"CILLOW_TEST_VAR": "x"}})
	if frames[0].Kind != protocol.KindResult || string(frames[0].Value) != "null" {
		t.Fatalf("unexpected result for SET_ENV_VARS: %+v", frames[0])
	}
	if got := os.Getenv("CILLOW_TEST_VAR"); got != "x" {
		t.Fatalf("CILLOW_TEST_VAR = %q after SET_ENV_VARS, want %q", got, "x")
	}
}

func TestRunCommandReturnsExitCode(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCommand, Argv: []string{"true"}})
	if frames[0].Kind != protocol.KindResult || string(frames[0].Value) != "0" {
		t.Fatalf("expected exit code 0, got %+v", frames[0])
	}
}

func TestRunCommandSpawnFailureBecomesException(t *testing.T) {
	rt := newTestRuntime()
	frames := dispatchAndCollect(rt, protocol.Request{Kind: protocol.RunCommand, Argv: []string{"this-binary-does-not-exist-cillow"}})
	if frames[0].Kind != protocol.KindException || frames[0].ExcType != protocol.CommandError {
		t.Fatalf("expected CommandError exception, got %+v", frames[0])
	}
}
