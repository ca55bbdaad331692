package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/protocol"
	"github.com/synacktraa/cillow/internal/workerproc"
)

// State is a WorkerHandle's lifecycle state (§3).
type State int32

const (
	Idle State = iota
	Busy
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Busy:
		return "BUSY"
	case Terminating:
		return "TERMINATING"
	default:
		return "UNKNOWN"
	}
}

// job is one dispatched request plus the channel its response frames are
// streamed back on.
type job struct {
	request protocol.Request
	frames  chan protocol.Frame
}

// Handle is one live interpreter subprocess, realized as its own actor
// goroutine fed by a private jobs channel. This is the "one actor/goroutine
// per worker, channel-fed" alternative that SPEC_FULL.md §9 adopts in place
// of a pool-wide mutex-plus-BUSY-condition: a second request for this key
// simply queues behind the first on the jobs channel, with no separate
// condition variable needed.
type Handle struct {
	Key       identity.WorkerKey
	CreatedAt time.Time

	proc workerproc.Proc

	state     atomic.Int32
	lastUsed  atomic.Int64 // unix nanos
	jobs      chan *job
	stopCh    chan struct{}
	stopOnce  sync.Once
	termKind  atomic.Value // protocol.ExceptionType, set before stopCh closes
}

// newPendingHandle reserves a pool slot for key before its subprocess has
// even been spawned. Its jobs/stopCh channels are live immediately, so a
// concurrent Dispatch for the same key that arrives mid-spawn simply queues
// on submit() (blocking send to an as-yet-unread channel) rather than
// racing against a handle that doesn't exist yet.
func newPendingHandle(key identity.WorkerKey) *Handle {
	h := &Handle{
		Key:    key,
		jobs:   make(chan *job),
		stopCh: make(chan struct{}),
	}
	h.lastUsed.Store(time.Now().UnixNano())
	return h
}

// start attaches the now-ready subprocess and begins the actor loop. Called
// once spawning + the READY handshake have succeeded.
func (h *Handle) start(proc workerproc.Proc) {
	h.CreatedAt = time.Now()
	h.proc = proc
	go h.run()
}

// State reports the handle's current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// LastUsed reports when the handle last finished processing a request.
func (h *Handle) LastUsed() time.Time {
	return time.Unix(0, h.lastUsed.Load())
}

// Pid returns the OS process id of the underlying interpreter subprocess.
func (h *Handle) Pid() int { return h.proc.Pid() }

// submit enqueues req for this worker and returns the channel its response
// frames will be streamed on, terminated by exactly one END frame. If the
// worker is already being torn down, a synthetic EXCEPTION carrying the
// recorded termination reason (WorkerDied if none was recorded) plus END is
// returned immediately instead of blocking forever on a dead actor.
func (h *Handle) submit(req protocol.Request) <-chan protocol.Frame {
	frames := make(chan protocol.Frame, 16)
	j := &job{request: req, frames: frames}

	select {
	case h.jobs <- j:
	case <-h.stopCh:
		emitTerminal(frames, h.terminationKind(), "worker is terminating")
	}
	return frames
}

// terminate marks the handle as terminating with the given reason and
// unblocks any actor currently waiting on a Recv so it can synthesize the
// terminal frame for whatever job it's mid-way through. It does not itself
// stop the subprocess; callers are expected to also call Process().Shutdown.
func (h *Handle) terminate(reason protocol.ExceptionType) {
	h.termKind.Store(reason)
	h.state.Store(int32(Terminating))
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Handle) terminationKind() protocol.ExceptionType {
	if v, ok := h.termKind.Load().(protocol.ExceptionType); ok {
		return v
	}
	return protocol.WorkerDied
}

// Process exposes the underlying subprocess handle for the pool's teardown
// path (Delete/Shutdown), which needs to call Shutdown/Kill on it directly.
func (h *Handle) Process() workerproc.Proc { return h.proc }

// run is the worker actor's main loop: pull one job at a time, forward it
// to the subprocess, and relay every response frame until END or a dead
// channel.
func (h *Handle) run() {
	for {
		select {
		case j, ok := <-h.jobs:
			if !ok {
				return
			}
			h.handle(j)
		case <-h.stopCh:
			return
		}
	}
}

func (h *Handle) handle(j *job) {
	h.state.Store(int32(Busy))
	defer func() {
		h.lastUsed.Store(time.Now().UnixNano())
		if h.State() != Terminating {
			h.state.Store(int32(Idle))
		}
	}()

	payload, err := j.request.Encode()
	if err != nil {
		emitTerminal(j.frames, protocol.MalformedRequest, err.Error())
		return
	}

	if err := h.proc.Send(payload); err != nil {
		h.terminate(protocol.WorkerDied)
		emitTerminal(j.frames, protocol.WorkerDied, err.Error())
		return
	}

	for {
		raw, err := h.proc.Recv()
		if err != nil {
			emitTerminal(j.frames, h.terminationKindOr(protocol.WorkerDied), err.Error())
			return
		}
		frame, err := protocol.Decode(raw)
		if err != nil {
			emitTerminal(j.frames, protocol.WorkerDied, "malformed frame from worker: "+err.Error())
			return
		}
		j.frames <- frame
		if frame.Kind == protocol.KindEnd {
			close(j.frames)
			return
		}
	}
}

// terminationKindOr returns the recorded termination reason if the handle
// has been explicitly terminated, else def (used to distinguish an
// operator-initiated DELETE_INTERPRETER/shutdown from a genuine crash).
func (h *Handle) terminationKindOr(def protocol.ExceptionType) protocol.ExceptionType {
	if h.State() == Terminating {
		return h.terminationKind()
	}
	return def
}

func emitTerminal(frames chan protocol.Frame, kind protocol.ExceptionType, message string) {
	frames <- protocol.ExceptionFrame(kind, message, "")
	frames <- protocol.EndFrame()
	close(frames)
}
