// Package config defines Cillow's configuration surface and the capacity
// derivation formulas used to size the worker pool and request queue when
// the operator hasn't overridden them.
package config

import (
	"runtime"

	goutilsconfig "github.com/Scusemua/go-utils/config"
)

// Options is Cillow's full configuration surface (§6): transport binding
// plus admission/concurrency knobs, with the ambient logging flags
// (Debug/Verbose) pulled in via LoggerOptions the same way every
// Scusemua/go-utils-based component in this codebase's lineage does it.
type Options struct {
	goutilsconfig.LoggerOptions

	Host string `name:"host" description:"Host/interface the broker's router socket binds to."`
	Port int    `name:"port" description:"Port the broker's router socket binds to."`

	Nmax int `name:"nmax" description:"Maximum number of live interpreter workers across all clients. 0 means derive from CPU count."`
	Cmax int `name:"cmax" description:"Maximum number of live interpreter workers per client."`
	W    int `name:"workers" description:"Number of request-broker worker goroutines. 0 means derive from Nmax."`
	Q    int `name:"queue" description:"Capacity of the bounded job queue. 0 means derive from W."`
}

// Validate fills in every zero-valued capacity knob from the derivation
// formulas in SPEC_FULL.md §4.F, and applies the transport defaults from §6.
// It is called by config.ValidateOptionsWithFlags as part of the Options
// interface contract (see the vendored Scusemua/go-utils/config package).
func (o *Options) Validate() error {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port == 0 {
		o.Port = 5556
	}

	if o.Nmax == 0 {
		o.Nmax = DefaultNmax()
	}
	if o.Cmax == 0 {
		o.Cmax = 1
	}
	if o.W == 0 {
		o.W = DefaultW(o.Nmax)
	}
	if o.Q == 0 {
		o.Q = o.W
	}

	return nil
}

// DefaultNmax implements Nmax = min(max(2, cpu_count-1), 8).
func DefaultNmax() int {
	n := runtime.NumCPU() - 1
	if n < 2 {
		n = 2
	}
	if n > 8 {
		n = 8
	}
	return n
}

// DefaultW implements W = max(2, 2*Nmax).
func DefaultW(nmax int) int {
	w := 2 * nmax
	if w < 2 {
		w = 2
	}
	return w
}
