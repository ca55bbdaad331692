// Package interpreter implements the single-process, single-threaded
// evaluator a cillow-worker process runs (§4.D): a persistent goja runtime
// namespace, dependency discovery and installation before execution, and
// dispatch for every request kind the worker itself services.
package interpreter

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/Scusemua/go-utils/logger"
	"github.com/dop251/goja"
	"github.com/goccy/go-json"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/protocol"
)

// Runtime is one worker's persistent evaluation context: a single
// goja.Runtime whose global namespace survives across requests, so
// definitions made in one RUN_CODE are visible in the next (§4.D). goja
// runtimes are not safe for concurrent use, which is exactly the
// single-threaded-evaluator contract the spec asks for — this package
// never needs to enforce it separately.
type Runtime struct {
	log logger.Logger

	rt       *goja.Runtime
	env      identity.Environment
	registry *Registry
	hooks    []Hook
	installer Installer
	installed map[string]struct{}
}

// New builds a Runtime bound to env, capturing whatever hooks are
// registered in registry at this moment (later Add calls do not
// retroactively affect an already-running worker, per §4.C).
func New(log logger.Logger, env identity.Environment, registry *Registry) *Runtime {
	envDir := ""
	if !env.IsSystem() {
		envDir = env.String()
	}
	return &Runtime{
		log:       log,
		rt:        goja.New(),
		env:       env,
		registry:  registry,
		hooks:     registry.Snapshot(),
		installer: Installer{EnvDir: envDir},
		installed: make(map[string]struct{}),
	}
}

// Dispatch executes one Request against this runtime and streams the
// resulting frames to onStream, finishing with exactly one RESULT or
// EXCEPTION followed by END — the per-request contract of §4.D.
// DELETE_INTERPRETER and SHUTDOWN_CLIENT are handled by the broker (§4.E)
// and never reach a worker's Dispatch. The broker forwards SWITCH_INTERPRETER
// like any other request; it lands in the default branch below and is
// answered with MalformedRequest.
func (r *Runtime) Dispatch(ctx context.Context, req protocol.Request, onStream StreamFunc) {
	var terminal protocol.Frame
	switch req.Kind {
	case protocol.RunCode:
		terminal = r.runCode(ctx, req.Source, onStream)
	case protocol.RunCommand:
		terminal = r.runCommand(ctx, req.Argv, onStream)
	case protocol.InstallRequirements:
		terminal = r.installRequirements(ctx, req.Names, onStream)
	case protocol.SetEnvVars:
		terminal = r.setEnvVars(req.Vars)
	default:
		terminal = protocol.ExceptionFrame(protocol.MalformedRequest,
			fmt.Sprintf("request kind %q is not handled by a worker", req.Kind), "")
	}
	onStream(terminal)
	onStream(protocol.EndFrame())
}

// runCode implements §4.D's RUN_CODE dispatch. JS scripts evaluate to the
// completion value of their last expression statement (the same semantics
// `eval` has in every ECMAScript engine), so unlike the teacher spec's
// Python-derived "split into statements block + trailing expression" step,
// a single rt.RunProgram call already yields the right RESULT value with no
// manual AST split required — a direct, simplifying consequence of
// targeting a JS runtime instead of Python's.
func (r *Runtime) runCode(ctx context.Context, source string, onStream StreamFunc) protocol.Frame {
	// Syntax is validated before any dependency inspection/install is
	// attempted: UnresolvedModules is a regex-based scan and will happily
	// match require(...)/import-from tokens inside source that doesn't
	// actually parse, which would otherwise trigger a real install for code
	// that's going to be rejected anyway.
	program, err := goja.Compile("<run_code>", source, false)
	if err != nil {
		return protocol.ExceptionFrame(protocol.UserCodeError, err.Error(), "")
	}

	unresolved := UnresolvedModules(source, r.installed)
	if len(unresolved) > 0 {
		if err := r.installer.Install(ctx, unresolved, onStream); err != nil {
			onStream(protocol.StreamFrame("installer", err.Error()+"\n"))
		} else {
			for _, name := range unresolved {
				r.installed[name] = struct{}{}
			}
		}
	}

	var value goja.Value
	runErr := WithHooks(r.rt, r.hooks, onStream, func() error {
		v, err := r.rt.RunProgram(program)
		value = v
		return err
	})
	if runErr != nil {
		return exceptionFrameFromGoja(runErr)
	}

	return resultFrameFromValue(value)
}

// runCommand implements RUN_COMMAND: spawn argv, stream its combined output
// as STREAM frames, and return the exit code as RESULT (or EXCEPTION on
// spawn failure).
func (r *Runtime) runCommand(ctx context.Context, argv []string, onStream StreamFunc) protocol.Frame {
	if len(argv) == 0 {
		return protocol.ExceptionFrame(protocol.CommandError, "empty command", "")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if !r.env.IsSystem() {
		cmd.Dir = r.env.String()
	}
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return protocol.ExceptionFrame(protocol.CommandError, err.Error(), "")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return protocol.ExceptionFrame(protocol.CommandError, err.Error(), "")
	}

	if err := cmd.Start(); err != nil {
		return protocol.ExceptionFrame(protocol.CommandError, err.Error(), "")
	}

	done := make(chan struct{}, 2)
	go pumpCommandStream(stdout, "stdout", onStream, done)
	go pumpCommandStream(stderr, "stderr", onStream, done)
	<-done
	<-done

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return protocol.ExceptionFrame(protocol.CommandError, err.Error(), "")
		}
	}

	value, _ := json.Marshal(exitCode)
	return protocol.ResultFrame(value)
}

func pumpCommandStream(r interface{ Read([]byte) (int, error) }, kind string, onStream StreamFunc, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			onStream(protocol.StreamFrame(kind, string(buf[:n])))
		}
		if err != nil {
			return
		}
	}
}

// installRequirements implements INSTALL_REQUIREMENTS: delegate straight
// to the installer with the caller-supplied name list (§4.B).
func (r *Runtime) installRequirements(ctx context.Context, names []string, onStream StreamFunc) protocol.Frame {
	if err := r.installer.Install(ctx, names, onStream); err != nil {
		return protocol.ExceptionFrame(protocol.InstallerError, err.Error(), "")
	}
	for _, name := range names {
		r.installed[InstallName(name)] = struct{}{}
	}
	return protocol.ResultFrame(json.RawMessage("null"))
}

// setEnvVars implements SET_ENV_VARS: mutate this process's environment
// table in place, visible to every subsequent RUN_COMMAND/installer spawn.
func (r *Runtime) setEnvVars(vars map[string]string) protocol.Frame {
	for k, v := range vars {
		_ = os.Setenv(k, v)
	}
	return protocol.ResultFrame(json.RawMessage("null"))
}

// resultFrameFromValue converts a goja completion value to the RESULT
// frame's JSON payload; undefined becomes null, matching "otherwise RESULT
// is null" in §4.D.
func resultFrameFromValue(value goja.Value) protocol.Frame {
	if value == nil || goja.IsUndefined(value) {
		return protocol.ResultFrame(json.RawMessage("null"))
	}
	exported := value.Export()
	encoded, err := json.Marshal(exported)
	if err != nil {
		// Value has no JSON form (e.g. a function); report its string form
		// instead of failing the whole request.
		encoded, _ = json.Marshal(value.String())
	}
	return protocol.ResultFrame(encoded)
}

// exceptionFrameFromGoja renders a goja runtime error (including thrown
// JS exceptions, which goja wraps as *goja.Exception) into an EXCEPTION
// frame carrying the JS stack trace as traceback.
func exceptionFrameFromGoja(err error) protocol.Frame {
	if jsErr, ok := err.(*goja.Exception); ok {
		return protocol.ExceptionFrame(protocol.UserCodeError, jsErr.Value().String(), jsErr.String())
	}
	return protocol.ExceptionFrame(protocol.UserCodeError, err.Error(), "")
}
