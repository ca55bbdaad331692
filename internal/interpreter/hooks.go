package interpreter

import (
	"encoding/base64"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/synacktraa/cillow/internal/protocol"
)

// Hook is a reversible binding that replaces some callable in the runtime's
// global namespace for the duration of a scope, per §4.C: composing by
// nesting in registration order, restoring on every exit path, and never
// reconfigured mid-request.
//
// Grounded on the teacher spec's Switchable/patch registry: Switchable
// rebinds one attribute on one parent object and restores it on scope
// exit; Hook generalizes that to "whatever goja.Runtime global this hook
// owns", since a statically-typed port has no equivalent of walking
// __self__/__qualname__ to discover a callable's parent at runtime — each
// Hook simply knows its own binding.
type Hook interface {
	// Install binds this hook's instrumented callable into rt, returning a
	// restore func that puts the previous value back. onStream receives
	// every STREAM/BYTE_STREAM frame the hook produces while active.
	Install(rt *goja.Runtime, onStream StreamFunc) (restore func(), err error)
}

// Registry is the process-wide ordered list of capture hooks (§4.C).
// Hooks are appended before any worker spawns; a worker inherits whatever
// is registered at the moment it starts and never observes later
// registrations (hooks "are reconfigurable between requests but never
// mid-request", and additions after spawn apply only to workers started
// afterward).
type Registry struct {
	hooks []Hook
}

// NewRegistry builds an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends hooks to the registry, in the order subsequent scopes will
// install them.
func (r *Registry) Add(hooks ...Hook) {
	r.hooks = append(r.hooks, hooks...)
}

// Snapshot returns the hooks registered so far, for a worker to capture at
// spawn time (so later Add calls don't retroactively affect it).
func (r *Registry) Snapshot() []Hook {
	out := make([]Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// WithHooks installs every hook in order, runs fn, then restores every
// hook in reverse installation order — guaranteed even if fn panics. This
// is the scope primitive the teacher spec names "with_hooks": entering
// installs all hooks, exiting restores all prior bindings.
func WithHooks(rt *goja.Runtime, hooks []Hook, onStream StreamFunc, fn func() error) error {
	restores := make([]func(), 0, len(hooks))
	defer func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}()

	for _, h := range hooks {
		restore, err := h.Install(rt, onStream)
		if err != nil {
			return err
		}
		restores = append(restores, restore)
	}

	return fn()
}

// consoleHook replaces the runtime's console.log/console.error so that
// user-code output becomes STREAM{"stdout"/"stderr"} frames instead of
// writing to the worker process's own stdout (which is reserved for the
// framed broker channel). Grounded on patch_stdout_stderr_write, rebased
// from Python's sys.stdout.write onto a JS console global (goja itself
// defines none, so the hook creates it).
type consoleHook struct{}

// NewConsoleHook returns the stdout/stderr capture hook installed in every
// worker by default.
func NewConsoleHook() Hook { return consoleHook{} }

func (consoleHook) Install(rt *goja.Runtime, onStream StreamFunc) (func(), error) {
	console := rt.NewObject()
	prevConsole := rt.Get("console")

	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		onStream(protocol.StreamFrame("stdout", joinArgs(call)+"\n"))
		return goja.Undefined()
	})
	_ = console.Set("error", func(call goja.FunctionCall) goja.Value {
		onStream(protocol.StreamFrame("stderr", joinArgs(call)+"\n"))
		return goja.Undefined()
	})
	_ = console.Set("warn", func(call goja.FunctionCall) goja.Value {
		onStream(protocol.StreamFrame("stderr", joinArgs(call)+"\n"))
		return goja.Undefined()
	})

	if err := rt.Set("console", console); err != nil {
		return nil, err
	}

	return func() {
		if prevConsole == nil {
			_ = rt.GlobalObject().Delete("console")
			return
		}
		_ = rt.Set("console", prevConsole)
	}, nil
}

// byteStreamHook exposes a single global function user code calls to hand
// off a chunk of binary data (base64-encoded, since goja's JS side has no
// native byte buffer convenient to pass across the host boundary), which
// is emitted as a BYTE_STREAM frame rather than written to any file.
//
// Grounded on patch_matplotlib_pyplot_show / patch_pillow_show: both
// replace a library's "show the result" entrypoint with a callback that
// captures the rendered bytes instead of opening a window. There is no
// wired JS graphics library to intercept the same way (none of the
// example repos' dependency surfaces include one), so this hook exposes
// the capture side of that pattern directly as a runtime global instead of
// monkey-patching a specific library's show function; a future hook for a
// specific image/plotting package would Install by wrapping that
// package's export instead of adding a bare global.
type byteStreamHook struct {
	kind       string
	globalName string
}

// NewByteStreamHook returns a hook that installs rt[globalName] as a
// function(base64Data) capturing a BYTE_STREAM{kind} frame per call, with
// a fresh correlation id per chunk.
func NewByteStreamHook(kind, globalName string) Hook {
	return byteStreamHook{kind: kind, globalName: globalName}
}

func (h byteStreamHook) Install(rt *goja.Runtime, onStream StreamFunc) (func(), error) {
	prev := rt.Get(h.globalName)

	fn := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		data, err := base64.StdEncoding.DecodeString(call.Arguments[0].String())
		if err != nil {
			return goja.Undefined()
		}
		onStream(protocol.ByteStreamFrame(h.kind, uuid.NewString(), data))
		return goja.Undefined()
	}

	if err := rt.Set(h.globalName, fn); err != nil {
		return nil, err
	}

	return func() {
		if prev == nil {
			_ = rt.GlobalObject().Delete(h.globalName)
			return
		}
		_ = rt.Set(h.globalName, prev)
	}, nil
}

func joinArgs(call goja.FunctionCall) string {
	out := ""
	for i, arg := range call.Arguments {
		if i > 0 {
			out += " "
		}
		out += arg.String()
	}
	return out
}
