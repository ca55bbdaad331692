// Package broker implements the Request Broker (§4.F): the ZeroMQ ROUTER
// endpoint, the bounded job queue, and the worker-thread pool that drains
// it into the interpreter pool.
package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/go-zeromq/zmq4"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/pool"
	"github.com/synacktraa/cillow/internal/protocol"
)

// Dispatcher is the subset of *pool.Pool the broker depends on, so tests
// can substitute a fake without spawning real worker subprocesses.
type Dispatcher interface {
	Dispatch(ctx context.Context, key identity.WorkerKey, req protocol.Request) <-chan protocol.Frame
	DeleteAllForClient(client identity.ClientId, reason protocol.ExceptionType)
	Delete(key identity.WorkerKey, reason protocol.ExceptionType) bool
	Shutdown()
}

var _ Dispatcher = (*pool.Pool)(nil)

// job is one accepted client request awaiting a worker thread, bundled
// with the identity frame replies must be addressed back to.
type job struct {
	identity []byte
	payload  []byte
}

// Broker owns the router socket and the W-worker-thread pool draining the
// bounded job queue of size Q (§4.F). Grounded on the teacher's
// common/jupyter/router.Router in spirit (zmq4.NewRouter bound to a
// listening socket, a logger initialized the same way), but collapsed from
// the teacher's five-socket Jupyter-protocol Server down to the single
// ROUTER endpoint this simpler wire protocol needs.
type Broker struct {
	log logger.Logger

	sock  zmq4.Socket
	pool  Dispatcher
	queue chan job
	w     int

	workersWg  sync.WaitGroup
	acceptDone chan struct{}
	closing    atomic.Bool

	// sendFn is indirected for tests: it defaults to b.sendOnSocket but can
	// be swapped for a recording fake so routing logic (handleJob) can be
	// exercised without a real zmq4 socket.
	sendFn func(id []byte, frame protocol.Frame)
}

// New builds a Broker bound to dispatcher, with a queue of capacity q and
// w worker threads draining it (§4.F's capacity derivation happens in the
// config package; this constructor just takes the already-derived values).
func New(dispatcher Dispatcher, w, q int) *Broker {
	b := &Broker{
		pool:       dispatcher,
		queue:      make(chan job, q),
		w:          w,
		acceptDone: make(chan struct{}),
	}
	b.sendFn = b.sendOnSocket
	config.InitLogger(&b.log, b)
	return b
}

// Listen binds the router socket to addr (e.g. "tcp://127.0.0.1:5556") and
// starts the worker-thread pool and accept loop. It returns once the
// socket is bound; the accept loop and workers run in background
// goroutines until Shutdown is called.
func (b *Broker) Listen(ctx context.Context, addr string) error {
	b.sock = zmq4.NewRouter(ctx)
	if err := b.sock.Listen(addr); err != nil {
		return fmt.Errorf("broker: listen on %s: %w", addr, err)
	}
	b.log.Info("Broker listening on %s (W=%d, Q=%d)", addr, b.w, cap(b.queue))

	for i := 0; i < b.w; i++ {
		b.workersWg.Add(1)
		go b.workerLoop(ctx, i)
	}

	go b.acceptLoop()

	return nil
}

// acceptLoop reads one multipart [identity, payload] message at a time off
// the router socket and pushes it onto the bounded job queue, refusing
// with ServerBusy synchronously (no blocking of the accept path) when the
// queue is full (§4.F backpressure). It exits as soon as the socket
// errors (Shutdown closes it to force this) or b.closing has been set,
// whichever it observes first — guaranteeing it never sends on b.queue
// again once Shutdown starts draining and closing it.
//
// A ROUTER socket reports no event when a client's underlying connection
// drops — zmq4 (like every ZeroMQ ROUTER) only ever surfaces a dead peer
// implicitly, by the absence of further traffic under that identity.
// There is no callback here to reclaim an abandoned client's workers; the
// per-client reclamation path (§4.E "Client disconnect", §8 scenario 6)
// relies entirely on the client sending SHUTDOWN_CLIENT before
// disconnecting. Acceptable given the transport, but it means a client that
// vanishes without sending SHUTDOWN_CLIENT keeps its workers until they
// exit on their own or the broker shuts down; there is no idle timeout.
func (b *Broker) acceptLoop() {
	defer close(b.acceptDone)
	for {
		msg, err := b.sock.Recv()
		if err != nil {
			return
		}
		if b.closing.Load() {
			return
		}
		if len(msg.Frames) < 2 {
			b.log.Warn("Dropping malformed multipart message with %d frames", len(msg.Frames))
			continue
		}
		id := append([]byte(nil), msg.Frames[0]...)
		payload := append([]byte(nil), msg.Frames[1]...)

		select {
		case b.queue <- job{identity: id, payload: payload}:
		default:
			b.replyRefusal(id, protocol.ServerBusy, "job queue is full")
		}
	}
}

// workerLoop is one of the W worker threads: pull a job, decode it,
// dispatch it into the pool, and relay every response frame back on the
// router socket in order until END (§4.F). It exits once the queue is
// closed and drained, which Shutdown guarantees happens only after every
// still-pending job has already been refused.
func (b *Broker) workerLoop(ctx context.Context, idx int) {
	defer b.workersWg.Done()
	for j := range b.queue {
		b.handleJob(ctx, j)
	}
}

func (b *Broker) handleJob(ctx context.Context, j job) {
	req, err := protocol.DecodeRequest(j.payload)
	if err != nil {
		b.replyRefusal(j.identity, protocol.MalformedRequest, err.Error())
		return
	}

	client := identity.ClientId(j.identity)

	if req.Kind == protocol.ShutdownClient {
		b.pool.DeleteAllForClient(client, protocol.Cancelled)
		b.send(j.identity, protocol.EndFrame())
		return
	}

	key := identity.NewWorkerKey(client, identity.Environment(req.Env))

	if req.Kind == protocol.DeleteInterpreter {
		b.pool.Delete(key, protocol.Cancelled)
		b.send(j.identity, protocol.EndFrame())
		return
	}

	frames := b.pool.Dispatch(ctx, key, req)
	for frame := range frames {
		b.send(j.identity, frame)
	}
}

func (b *Broker) replyRefusal(id []byte, kind protocol.ExceptionType, message string) {
	b.send(id, protocol.ExceptionFrame(kind, message, ""))
	b.send(id, protocol.EndFrame())
}

func (b *Broker) send(id []byte, frame protocol.Frame) {
	b.sendFn(id, frame)
}

func (b *Broker) sendOnSocket(id []byte, frame protocol.Frame) {
	encoded, err := frame.Encode()
	if err != nil {
		b.log.Error("Failed to encode frame for reply: %v", err)
		return
	}
	msg := zmq4.NewMsgFrom(id, encoded)
	if err := b.sock.Send(msg); err != nil {
		b.log.Warn("Failed to send reply frame: %v", err)
	}
}

// Shutdown implements the shutdown half of §4.G: stop accepting new
// requests by closing the socket, drain the queue by refusing every pending
// job with EXCEPTION(Shutdown)+END, tear down every pool worker, and join
// the worker threads.
//
// Ordering matters here to stay panic-free: the accept loop must have
// fully stopped (confirmed via acceptDone) before the queue is closed, so
// a send on a closed channel can never race with Shutdown's drain.
func (b *Broker) Shutdown() {
	b.closing.Store(true)
	if b.sock != nil {
		_ = b.sock.Close() // unblocks acceptLoop's Recv with an error
	}
	<-b.acceptDone

drain:
	for {
		select {
		case j := <-b.queue:
			b.replyRefusal(j.identity, protocol.Shutdown, "broker is shutting down")
		default:
			break drain
		}
	}
	close(b.queue)

	b.pool.Shutdown()
	b.workersWg.Wait()
}
