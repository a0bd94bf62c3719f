package train

import (
	"github.com/avivg/burn-hl/ml/data"
)

// Item is one progress record delivered to a Callback: the step output plus
// where in the run it was produced.
type Item[T any] struct {
	// Item is the model step's visible output.
	Item T

	// Progress of the current pass over the data.
	Progress data.Progress

	// Epoch currently running (1-based) and the total number of epochs.
	Epoch, EpochTotal int

	// Iteration within the epoch (1-based).
	Iteration int
}

// Callback receives per-item and per-epoch progress notifications from the
// engine: metrics aggregation, rendering, early-stopping bookkeeping all
// hang off this seam. Calls are synchronous from the engine's perspective;
// wrap with NewAsyncCallback to keep slow observers off the hot loop.
type Callback[TO, VO any] interface {
	OnTrainItem(item Item[TO])
	OnValidItem(item Item[VO])
	OnTrainEndEpoch(epoch int)
	OnValidEndEpoch(epoch int)
}

// NopCallback is a Callback that ignores every notification.
type NopCallback[TO, VO any] struct{}

func (NopCallback[TO, VO]) OnTrainItem(Item[TO])  {}
func (NopCallback[TO, VO]) OnValidItem(Item[VO])  {}
func (NopCallback[TO, VO]) OnTrainEndEpoch(int)   {}
func (NopCallback[TO, VO]) OnValidEndEpoch(int)   {}

// eventQueueSize bounds how many notifications may be pending before the
// training loop blocks on the observer.
const eventQueueSize = 64

// AsyncCallback decouples an observer from the training loop: notifications
// are queued and delivered, in order, by one background goroutine. Close
// flushes the queue and waits for delivery to finish.
type AsyncCallback[TO, VO any] struct {
	inner  Callback[TO, VO]
	events chan func()
	done   chan struct{}
}

// NewAsyncCallback wraps the given Callback.
func NewAsyncCallback[TO, VO any](inner Callback[TO, VO]) *AsyncCallback[TO, VO] {
	a := &AsyncCallback[TO, VO]{
		inner:  inner,
		events: make(chan func(), eventQueueSize),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for event := range a.events {
			event()
		}
	}()
	return a
}

// OnTrainItem implements Callback.
func (a *AsyncCallback[TO, VO]) OnTrainItem(item Item[TO]) {
	a.events <- func() { a.inner.OnTrainItem(item) }
}

// OnValidItem implements Callback.
func (a *AsyncCallback[TO, VO]) OnValidItem(item Item[VO]) {
	a.events <- func() { a.inner.OnValidItem(item) }
}

// OnTrainEndEpoch implements Callback.
func (a *AsyncCallback[TO, VO]) OnTrainEndEpoch(epoch int) {
	a.events <- func() { a.inner.OnTrainEndEpoch(epoch) }
}

// OnValidEndEpoch implements Callback.
func (a *AsyncCallback[TO, VO]) OnValidEndEpoch(epoch int) {
	a.events <- func() { a.inner.OnValidEndEpoch(epoch) }
}

// Close flushes pending notifications and stops the delivery goroutine.
func (a *AsyncCallback[TO, VO]) Close() error {
	close(a.events)
	<-a.done
	return nil
}
