package checkpoints

import (
	"sync"

	"github.com/avivg/burn-hl/ml/module"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// saveQueueSize bounds how many snapshots may wait for persistence before
// Save blocks the caller.
const saveQueueSize = 8

// AsyncCheckpointer wraps a synchronous Checkpointer and applies saves on a
// single background goroutine, strictly in submission order. The training
// loop is never blocked on checkpoint I/O (up to the queue bound), and a
// later save's retention pruning can never run ahead of an earlier save
// still in flight.
//
// A failed save is logged and swallowed: training continues, only that
// snapshot is missing. Load flushes the pending queue first, so it always
// observes every save submitted before it.
type AsyncCheckpointer struct {
	inner Checkpointer

	queue     chan saveRequest
	done      chan struct{}
	closeOnce sync.Once
}

type saveRequest struct {
	epoch int
	state module.State

	// flushed, when non-nil, marks a barrier request: it is closed once
	// every earlier save was applied.
	flushed chan struct{}
}

// NewAsyncCheckpointer wraps the given Checkpointer. Call Close when done
// with it to flush pending saves and stop the background goroutine.
func NewAsyncCheckpointer(inner Checkpointer) *AsyncCheckpointer {
	a := &AsyncCheckpointer{
		inner: inner,
		queue: make(chan saveRequest, saveQueueSize),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncCheckpointer) run() {
	defer close(a.done)
	for req := range a.queue {
		if req.flushed != nil {
			close(req.flushed)
			continue
		}
		if err := a.inner.Save(req.epoch, req.state); err != nil {
			klog.Errorf("asynchronous checkpoint save for epoch %d failed: %+v", req.epoch, err)
		}
	}
}

// Save implements Checkpointer: it enqueues the snapshot and returns
// without waiting for it to be written. I/O failures are reported by the
// background goroutine through the log, never through this return value.
func (a *AsyncCheckpointer) Save(epoch int, state module.State) error {
	select {
	case <-a.done:
		return errors.Errorf("AsyncCheckpointer.Save(epoch=%d) called after Close", epoch)
	default:
	}
	a.queue <- saveRequest{epoch: epoch, state: state}
	return nil
}

// Load implements Checkpointer. It waits for every save submitted before
// it, then reads from the wrapped Checkpointer.
func (a *AsyncCheckpointer) Load(epoch int) (module.State, error) {
	a.Flush()
	return a.inner.Load(epoch)
}

// Flush blocks until every save submitted so far was applied.
func (a *AsyncCheckpointer) Flush() {
	select {
	case <-a.done:
		return
	default:
	}
	barrier := make(chan struct{})
	a.queue <- saveRequest{flushed: barrier}
	<-barrier
}

// Close flushes pending saves and stops the background goroutine. Further
// calls are no-ops.
func (a *AsyncCheckpointer) Close() error {
	a.closeOnce.Do(func() {
		close(a.queue)
		<-a.done
	})
	return nil
}
