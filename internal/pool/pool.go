// Package pool implements the Worker Pool & Router (§4.E): the live set of
// interpreter workers keyed by (client, environment), admission control
// against the global and per-client caps, and request routing into each
// worker's private actor goroutine.
package pool

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/protocol"
	"github.com/synacktraa/cillow/internal/workerproc"
)

// Spawner creates the subprocess backing a new worker for the given
// environment. It is an interface (rather than calling workerproc.Spawn
// directly) so tests can substitute a fake process without forking a real
// binary.
type Spawner interface {
	Spawn(ctx context.Context, env string) (workerproc.Proc, error)
}

// RealSpawner spawns genuine OS subprocesses via workerproc.Spawn.
type RealSpawner struct{}

func (RealSpawner) Spawn(ctx context.Context, env string) (workerproc.Proc, error) {
	return workerproc.Spawn(ctx, env)
}

// Pool owns the WorkerPool map and PerClientIndex of §3, serialized by a
// single RWMutex as the base spec requires; per-key request ordering is
// delegated to each Handle's own actor goroutine (§9).
type Pool struct {
	log logger.Logger

	nmax, cmax int
	spawner    Spawner

	mu         sync.RWMutex
	workers    map[identity.WorkerKey]*Handle
	perClient  map[identity.ClientId]map[identity.Environment]struct{}
}

// New builds a Pool enforcing the given global (nmax) and per-client (cmax)
// interpreter caps.
func New(nmax, cmax int, spawner Spawner) *Pool {
	if spawner == nil {
		spawner = RealSpawner{}
	}
	p := &Pool{
		nmax:      nmax,
		cmax:      cmax,
		spawner:   spawner,
		workers:   make(map[identity.WorkerKey]*Handle),
		perClient: make(map[identity.ClientId]map[identity.Environment]struct{}),
	}
	config.InitLogger(&p.log, p)
	return p
}

// Len returns the current global worker count.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// PerClientCount returns how many workers the given client currently holds.
func (p *Pool) PerClientCount(client identity.ClientId) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.perClient[client])
}

// Dispatch implements dispatch(client, env, request) -> stream of
// ResponseFrame ending in END, per §4.E's lookup/admission algorithm.
func (p *Pool) Dispatch(ctx context.Context, key identity.WorkerKey, req protocol.Request) <-chan protocol.Frame {
	p.mu.Lock()
	if h, ok := p.workers[key]; ok {
		p.mu.Unlock()
		return h.submit(req)
	}

	globalCount := len(p.workers)
	perClientCount := len(p.perClient[key.Client])

	if perClientCount >= p.cmax {
		p.mu.Unlock()
		return refuse(protocol.PerClientQuotaExceeded, fmt.Sprintf(
			"client already holds %d/%d interpreters", perClientCount, p.cmax))
	}
	if globalCount >= p.nmax {
		p.mu.Unlock()
		return refuse(protocol.GlobalQuotaExceeded, fmt.Sprintf(
			"pool already holds %d/%d interpreters", globalCount, p.nmax))
	}
	p.mu.Unlock()

	// Validated last, after the cheaper capacity checks: an env directory
	// that doesn't exist is refused the same way an over-quota request is,
	// rather than spending a spawn attempt discovering it the hard way.
	if !key.Env.IsSystem() {
		if info, err := os.Stat(key.Env.String()); err != nil || !info.IsDir() {
			return refuse(protocol.UnknownEnvironment, fmt.Sprintf(
				"environment %q does not exist", key.Env))
		}
	}

	p.mu.Lock()
	if h, ok := p.workers[key]; ok {
		// Another Dispatch created this key's handle (or the quota picture
		// changed) while the environment existence check above ran
		// unlocked; route to the existing handle instead of double-admitting.
		p.mu.Unlock()
		return h.submit(req)
	}
	if len(p.perClient[key.Client]) >= p.cmax {
		p.mu.Unlock()
		return refuse(protocol.PerClientQuotaExceeded, "client quota exceeded while validating environment")
	}
	if len(p.workers) >= p.nmax {
		p.mu.Unlock()
		return refuse(protocol.GlobalQuotaExceeded, "pool quota exceeded while validating environment")
	}

	// Reserve the slot (and start accepting submissions on its jobs channel)
	// before releasing the lock, so two concurrent admissions for distinct
	// new keys can't both observe capacity and over-admit, and a concurrent
	// Dispatch for this same key that arrives mid-spawn queues safely rather
	// than racing against a handle that doesn't exist yet.
	pending := newPendingHandle(key)
	p.workers[key] = pending
	if p.perClient[key.Client] == nil {
		p.perClient[key.Client] = make(map[identity.Environment]struct{})
	}
	p.perClient[key.Client][key.Env] = struct{}{}
	p.mu.Unlock()

	proc, err := p.spawner.Spawn(ctx, string(key.Env))
	if err != nil {
		p.mu.Lock()
		delete(p.workers, key)
		p.removeFromClientIndexLocked(key)
		p.mu.Unlock()
		p.log.Warn("Failed to start interpreter worker for %s: %v", key, err)
		// No actor is running yet to consume submissions, so terminate
		// first (closing stopCh) and only then submit: submit's select
		// will take the already-closed-stopCh branch without blocking.
		pending.terminate(protocol.WorkerStartupFailed)
		return pending.submit(req)
	}

	pending.start(proc)
	go p.monitorDeath(key, pending)
	return pending.submit(req)
}

// monitorDeath reaps key's handle the moment its subprocess exits on its
// own (crash, OOM kill, etc.), rather than leaving a dead handle parked in
// p.workers forever. Per §7, a dead WorkerHandle must be removed so the
// next request for that key spawns a fresh worker instead of durably
// hitting the stopCh/dead-pipe path in handle().
func (p *Pool) monitorDeath(key identity.WorkerKey, h *Handle) {
	<-h.Process().Done()
	p.deleteIfCurrent(key, h, protocol.WorkerDied)
}

// deleteIfCurrent removes key's handle only if it is still h, so a worker
// that already died, was reaped, and respawned under the same key isn't
// evicted by a stale monitor goroutine watching the old subprocess.
func (p *Pool) deleteIfCurrent(key identity.WorkerKey, h *Handle, reason protocol.ExceptionType) {
	p.mu.Lock()
	if p.workers[key] != h {
		p.mu.Unlock()
		return
	}
	delete(p.workers, key)
	p.removeFromClientIndexLocked(key)
	p.mu.Unlock()

	h.terminate(reason)
	if h.Process() != nil {
		h.Process().Shutdown()
	}
}

func (p *Pool) removeFromClientIndexLocked(key identity.WorkerKey) {
	envs, ok := p.perClient[key.Client]
	if !ok {
		return
	}
	delete(envs, key.Env)
	if len(envs) == 0 {
		delete(p.perClient, key.Client)
	}
}

// Delete implements DELETE_INTERPRETER: remove the worker for key from the
// pool, signal its subprocess to exit (escalating to kill after a grace
// period), and ensure any in-flight request surfaces reason+END.
func (p *Pool) Delete(key identity.WorkerKey, reason protocol.ExceptionType) bool {
	p.mu.Lock()
	h, ok := p.workers[key]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.workers, key)
	p.removeFromClientIndexLocked(key)
	p.mu.Unlock()

	h.terminate(reason)
	if h.Process() != nil {
		h.Process().Shutdown()
	}
	return true
}

// DeleteAllForClient implements the "client disconnect" reclamation path
// (§4.E): every worker belonging to client is torn down as if
// DELETE_INTERPRETER had been called for each of its environments.
func (p *Pool) DeleteAllForClient(client identity.ClientId, reason protocol.ExceptionType) {
	p.mu.RLock()
	envs := make([]identity.Environment, 0, len(p.perClient[client]))
	for env := range p.perClient[client] {
		envs = append(envs, env)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, env := range envs {
		wg.Add(1)
		go func(env identity.Environment) {
			defer wg.Done()
			p.Delete(identity.WorkerKey{Client: client, Env: env}, reason)
		}(env)
	}
	wg.Wait()
}

// Shutdown tears down every worker in the pool, used by the Admission &
// Lifecycle shutdown sequence (§4.G).
func (p *Pool) Shutdown() {
	p.mu.RLock()
	keys := make([]identity.WorkerKey, 0, len(p.workers))
	for k := range p.workers {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k identity.WorkerKey) {
			defer wg.Done()
			p.Delete(k, protocol.Shutdown)
		}(k)
	}
	wg.Wait()
}

// refuse synthesizes a closed, already-terminated frame stream for
// admission refusals that never reach a real worker.
func refuse(kind protocol.ExceptionType, message string) <-chan protocol.Frame {
	frames := make(chan protocol.Frame, 2)
	emitTerminal(frames, kind, message)
	return frames
}
