// Command cillow-worker is the interpreter-worker subprocess the broker
// spawns for each (client, environment) pair (§4.D): it activates the
// target environment, installs the capture-hook registry, then serves
// framed requests off stdin and streams framed responses to stdout until
// its parent signals it to exit.
package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	goutilsconfig "github.com/Scusemua/go-utils/config"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/interpreter"
	"github.com/synacktraa/cillow/internal/protocol"
)

// options is this worker's tiny configuration surface: just the
// environment it's bound to, plus the ambient logging flags every
// Scusemua/go-utils-based entrypoint in this codebase's lineage carries.
type options struct {
	goutilsconfig.LoggerOptions

	Env string `name:"env" description:"Environment this worker is bound to ($system or an environment directory path)."`
}

func (o *options) Validate() error {
	if o.Env == "" {
		o.Env = identity.SystemEnvironment
	}
	return nil
}

var (
	opts         = options{}
	globalLogger = goutilsconfig.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	flags, err := goutilsconfig.ValidateOptionsWithFlags(&opts, os.Args[1:]...)
	if errors.Is(err, goutilsconfig.ErrPrintUsage) {
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}

	env := identity.Environment(opts.Env).Normalize()
	if !env.IsSystem() {
		// Activate the target environment by running inside its directory,
		// so relative installer invocations (package.json, node_modules)
		// resolve against it (§4.D: "activate the target environment...").
		if err := os.Chdir(env.String()); err != nil {
			globalLogger.Error("Failed to activate environment %q: %v", env, err)
			os.Exit(1)
		}
	}

	registry := interpreter.NewRegistry()
	registry.Add(
		interpreter.NewConsoleHook(),
		interpreter.NewByteStreamHook("image", "__cillow_emit_image"),
		interpreter.NewByteStreamHook("audio", "__cillow_emit_audio"),
	)
	rt := interpreter.New(globalLogger, env, registry)

	stdin := bufio.NewReader(os.Stdin)
	stdout := os.Stdout

	if err := protocol.WritePayload(stdout, protocol.ReadyPayload()); err != nil {
		globalLogger.Error("Failed to write READY handshake: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sig
		globalLogger.Info("Received interrupt, exiting")
		cancel()
		os.Exit(0)
	}()

	onStream := func(f protocol.Frame) {
		encoded, err := f.Encode()
		if err != nil {
			globalLogger.Error("Failed to encode response frame: %v", err)
			return
		}
		if err := protocol.WritePayload(stdout, encoded); err != nil {
			globalLogger.Error("Failed to write response frame: %v", err)
		}
	}

	for {
		payload, err := protocol.ReadPayload(stdin)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			globalLogger.Error("Failed to read request payload: %v", err)
			return
		}

		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			onStream(protocol.ExceptionFrame(protocol.MalformedRequest, err.Error(), ""))
			onStream(protocol.EndFrame())
			continue
		}

		rt.Dispatch(ctx, req, onStream)
	}
}
