// Command cillow-broker runs the Cillow Request Broker: it binds a ZeroMQ
// ROUTER socket, admits interpreter workers under the configured Nmax/Cmax
// caps, and relays framed requests/responses between clients and workers
// until an interrupt triggers a graceful drain (§4.G).
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	goutilsconfig "github.com/Scusemua/go-utils/config"

	"github.com/synacktraa/cillow/internal/broker"
	"github.com/synacktraa/cillow/internal/config"
	"github.com/synacktraa/cillow/internal/pool"
)

var (
	options      = config.Options{}
	globalLogger = goutilsconfig.GetLogger("")
	sig          = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
}

// validateOptions mirrors gateway/cmd/main.go's ValidateOptions helper:
// parse flags into options, print usage and exit cleanly on
// config.ErrPrintUsage, or fail hard on any other validation error.
func validateOptions() {
	flags, err := goutilsconfig.ValidateOptionsWithFlags(&options, os.Args[1:]...)
	if errors.Is(err, goutilsconfig.ErrPrintUsage) {
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}
}

func main() {
	validateOptions()

	globalLogger.Info("Starting cillow-broker: Nmax=%d Cmax=%d W=%d Q=%d",
		options.Nmax, options.Cmax, options.W, options.Q)

	workerPool := pool.New(options.Nmax, options.Cmax, pool.RealSpawner{})
	b := broker.New(workerPool, options.W, options.Q)

	addr := fmt.Sprintf("tcp://%s:%d", options.Host, options.Port)
	if err := b.Listen(context.Background(), addr); err != nil {
		log.Fatalf("Failed to start broker: %v", err)
	}

	globalLogger.Info("cillow-broker is ready")

	<-sig
	globalLogger.Info("Received interrupt, shutting down...")
	b.Shutdown()
	globalLogger.Info("Shutdown complete")
}
