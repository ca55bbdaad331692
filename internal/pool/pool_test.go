package pool

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/synacktraa/cillow/internal/identity"
	"github.com/synacktraa/cillow/internal/protocol"
	"github.com/synacktraa/cillow/internal/workerproc"
)

// fakeProc is an in-memory stand-in for a workerproc.Process: it echoes
// back a RESULT{null}+END for any request, so pool admission/routing logic
// can be exercised without forking a real interpreter-worker binary.
type fakeProc struct {
	mu   sync.Mutex
	pid  int
	done chan struct{}
	out  chan []byte
	dead bool
}

func newFakeProc(pid int) *fakeProc {
	return &fakeProc{pid: pid, done: make(chan struct{}), out: make(chan []byte, 8)}
}

func (f *fakeProc) Send(payload []byte) error {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		return err
	}
	_ = req
	result, _ := protocol.ResultFrame([]byte("null")).Encode()
	end, _ := protocol.EndFrame().Encode()
	f.out <- result
	f.out <- end
	return nil
}

func (f *fakeProc) Recv() ([]byte, error) {
	select {
	case b, ok := <-f.out:
		if !ok {
			return nil, bytes.ErrTooLarge
		}
		return b, nil
	case <-f.done:
		return nil, bytes.ErrTooLarge
	}
}

func (f *fakeProc) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dead {
		f.dead = true
		close(f.done)
	}
}
func (f *fakeProc) Kill()          { f.Shutdown() }
func (f *fakeProc) Pid() int       { return f.pid }
func (f *fakeProc) Done() <-chan struct{} { return f.done }

// crash simulates the subprocess exiting on its own (as opposed to the pool
// asking it to Shutdown/Kill), so Done() closes without Shutdown ever being
// called — the same observable signal a real *workerproc.Process gives when
// its cmd.Wait() goroutine returns unexpectedly.
func (f *fakeProc) crash() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dead {
		f.dead = true
		close(f.done)
	}
}

type fakeSpawner struct {
	mu    sync.Mutex
	next  int
	fail  bool
	procs []*fakeProc
}

func (s *fakeSpawner) Spawn(_ context.Context, _ string) (workerproc.Proc, error) {
	if s.fail {
		return nil, bytes.ErrTooLarge
	}
	s.mu.Lock()
	s.next++
	pid := s.next
	proc := newFakeProc(pid)
	s.procs = append(s.procs, proc)
	s.mu.Unlock()
	return proc, nil
}

func (s *fakeSpawner) lastProc() *fakeProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[len(s.procs)-1]
}

func drain(t *testing.T, frames <-chan protocol.Frame, timeout time.Duration) []protocol.Frame {
	t.Helper()
	var got []protocol.Frame
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return got
			}
			got = append(got, f)
			if f.Kind == protocol.KindEnd {
				return got
			}
		case <-time.After(timeout):
			t.Fatal("timed out waiting for frames")
			return nil
		}
	}
}

func TestDispatchSpawnsAndReusesWorker(t *testing.T) {
	p := New(4, 2, &fakeSpawner{})
	key := identity.NewWorkerKey("c1", "$system")

	frames := drain(t, p.Dispatch(context.Background(), key, protocol.Request{Kind: protocol.RunCode, Source: "1+1"}), time.Second)
	if len(frames) != 2 || frames[0].Kind != protocol.KindResult || frames[1].Kind != protocol.KindEnd {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	if p.Len() != 1 {
		t.Fatalf("pool size = %d, want 1", p.Len())
	}

	// Second request for the same key reuses the same worker (no growth).
	drain(t, p.Dispatch(context.Background(), key, protocol.Request{Kind: protocol.RunCode, Source: "2+2"}), time.Second)
	if p.Len() != 1 {
		t.Fatalf("pool size after reuse = %d, want 1", p.Len())
	}
}

func TestDispatchEnforcesPerClientQuota(t *testing.T) {
	p := New(4, 1, &fakeSpawner{})
	client := identity.ClientId("c1")

	drain(t, p.Dispatch(context.Background(), identity.NewWorkerKey(client, "$system"), protocol.Request{Kind: protocol.RunCode}), time.Second)

	frames := drain(t, p.Dispatch(context.Background(), identity.NewWorkerKey(client, "/envs/e2"), protocol.Request{Kind: protocol.RunCode}), time.Second)
	if len(frames) != 2 || frames[0].Kind != protocol.KindException || frames[0].ExcType != protocol.PerClientQuotaExceeded {
		t.Fatalf("expected PerClientQuotaExceeded, got %+v", frames)
	}
	if p.Len() != 1 {
		t.Fatalf("pool mutated beyond the first worker: size=%d", p.Len())
	}
}

func TestDispatchEnforcesGlobalQuota(t *testing.T) {
	p := New(1, 4, &fakeSpawner{})
	drain(t, p.Dispatch(context.Background(), identity.NewWorkerKey("c1", "$system"), protocol.Request{Kind: protocol.RunCode}), time.Second)

	frames := drain(t, p.Dispatch(context.Background(), identity.NewWorkerKey("c2", "$system"), protocol.Request{Kind: protocol.RunCode}), time.Second)
	if len(frames) != 2 || frames[0].ExcType != protocol.GlobalQuotaExceeded {
		t.Fatalf("expected GlobalQuotaExceeded, got %+v", frames)
	}
}

func TestDispatchSurfacesWorkerStartupFailure(t *testing.T) {
	p := New(4, 4, &fakeSpawner{fail: true})
	frames := drain(t, p.Dispatch(context.Background(), identity.NewWorkerKey("c1", "$system"), protocol.Request{Kind: protocol.RunCode}), time.Second)
	if len(frames) != 2 || frames[0].ExcType != protocol.WorkerStartupFailed {
		t.Fatalf("expected WorkerStartupFailed, got %+v", frames)
	}
	if p.Len() != 0 {
		t.Fatalf("failed spawn left a stale pool entry: size=%d", p.Len())
	}
}

func TestDeleteFreesQuotaForFreshWorker(t *testing.T) {
	p := New(4, 1, &fakeSpawner{})
	client := identity.ClientId("c1")
	key1 := identity.NewWorkerKey(client, "$system")

	drain(t, p.Dispatch(context.Background(), key1, protocol.Request{Kind: protocol.RunCode}), time.Second)
	if !p.Delete(key1, protocol.Cancelled) {
		t.Fatal("Delete on existing key returned false")
	}
	if p.Len() != 0 {
		t.Fatalf("pool size after delete = %d, want 0", p.Len())
	}

	key2 := identity.NewWorkerKey(client, identity.Environment(t.TempDir()))
	frames := drain(t, p.Dispatch(context.Background(), key2, protocol.Request{Kind: protocol.RunCode}), time.Second)
	if frames[0].Kind != protocol.KindResult {
		t.Fatalf("expected fresh dispatch to succeed after delete, got %+v", frames)
	}
}

func TestPoolReapsHandleWhenSubprocessDiesUnexpectedly(t *testing.T) {
	spawner := &fakeSpawner{}
	p := New(4, 1, spawner)
	client := identity.ClientId("c1")
	key := identity.NewWorkerKey(client, "$system")

	drain(t, p.Dispatch(context.Background(), key, protocol.Request{Kind: protocol.RunCode}), time.Second)
	if p.Len() != 1 {
		t.Fatalf("pool size = %d, want 1", p.Len())
	}

	// Kill the subprocess out from under the handle, without going through
	// Pool.Delete — this is what a real crash (not an operator-initiated
	// DELETE_INTERPRETER) looks like.
	spawner.lastProc().crash()

	deadline := time.After(time.Second)
	for p.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("pool never reaped the dead handle for %s; size=%d", key, p.Len())
		case <-time.After(time.Millisecond):
		}
	}
	if p.PerClientCount(client) != 0 {
		t.Fatalf("client quota not released after reap: count=%d", p.PerClientCount(client))
	}

	// The slot must accept a fresh worker instead of permanently returning
	// WorkerDied for this key.
	frames := drain(t, p.Dispatch(context.Background(), key, protocol.Request{Kind: protocol.RunCode}), time.Second)
	if frames[0].Kind != protocol.KindResult {
		t.Fatalf("expected fresh worker to serve the request after reap, got %+v", frames)
	}
	if p.Len() != 1 {
		t.Fatalf("pool size after respawn = %d, want 1", p.Len())
	}
}
