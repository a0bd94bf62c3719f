package data

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// parallelLoader fans data loading out across a fixed pool of worker
// goroutines. The (possibly shuffled) dataset's index range is partitioned
// into contiguous slices, one per worker; each worker runs an independent
// single-threaded loader over its slice and pushes completed batches into
// one shared bounded channel. The channel bound is the backpressure
// mechanism: a slow consumer stalls the workers instead of buffering
// without limit.
//
// Batches are delivered in completion order. Order within one worker's
// slice is preserved; order across workers is not.
type parallelLoader[I, B any] struct {
	dataset    Dataset[I]
	strategy   BatchStrategy[I]
	batcher    Batcher[I, B]
	numWorkers int

	impl      *parallelLoaderImpl[B]
	itemsSeen int
}

// loaderUnit carries one collated batch plus the number of raw items that
// went into it, so the consumer can track progress without inspecting B.
type loaderUnit[B any] struct {
	batch B
	items int
}

// parallelLoaderImpl holds the per-pass state: it is replaced wholesale on
// Reset so a new pass never races with a draining old one.
type parallelLoaderImpl[B any] struct {
	cache chan loaderUnit[B]

	err   error
	muErr sync.Mutex

	// passFinished is closed once every worker returned; stopPass is closed
	// to abort the pass early (first worker error, or Reset).
	passFinished chan struct{}
	stopPass     chan struct{}
	stopOnce     sync.Once
}

// NewParallelLoader creates a Loader that loads batches with numWorkers
// worker goroutines. The dataset and batcher must be safe for concurrent
// reads; the strategy is cloned per worker.
func NewParallelLoader[I, B any](dataset Dataset[I], strategy BatchStrategy[I], batcher Batcher[I, B], numWorkers int) Loader[B] {
	l := &parallelLoader[I, B]{
		dataset:    dataset,
		strategy:   strategy,
		batcher:    batcher,
		numWorkers: numWorkers,
	}
	l.impl = l.startPass()
	return l
}

// startPass partitions the dataset and starts one goroutine per slice.
func (l *parallelLoader[I, B]) startPass() *parallelLoaderImpl[B] {
	impl := &parallelLoaderImpl[B]{
		cache:        make(chan loaderUnit[B], l.numWorkers),
		passFinished: make(chan struct{}),
		stopPass:     make(chan struct{}),
	}

	total := l.dataset.Len()
	var wg sync.WaitGroup
	for w := 0; w < l.numWorkers; w++ {
		start := w * total / l.numWorkers
		end := (w + 1) * total / l.numWorkers
		if start == end {
			continue // More workers than items.
		}
		worker := NewBatchLoader[I, B](newSliceView[I](l.dataset, start, end), l.strategy.Clone(), l.batcher)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				select {
				case <-impl.stopPass:
					return
				default:
				}
				progressBefore := worker.Progress().Items
				batch, err := worker.Yield()
				if err == io.EOF {
					return
				}
				if err != nil {
					impl.muErr.Lock()
					if impl.err == nil {
						impl.err = errors.WithMessagef(err, "data loader worker #%d", w)
					}
					impl.muErr.Unlock()
					impl.stop()
					return
				}
				unit := loaderUnit[B]{batch: batch, items: worker.Progress().Items - progressBefore}
				select {
				case impl.cache <- unit:
				case <-impl.stopPass:
					return
				}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(impl.passFinished)
	}()
	return impl
}

// stop aborts the pass. Safe to call more than once.
func (impl *parallelLoaderImpl[B]) stop() {
	impl.stopOnce.Do(func() { close(impl.stopPass) })
}

// Yield implements Loader. Batches already pushed by a worker before it
// failed remain valid and are delivered before the worker's error.
func (l *parallelLoader[I, B]) Yield() (batch B, err error) {
	impl := l.impl
	var unit loaderUnit[B]
	select {
	case unit = <-impl.cache:
	case <-impl.passFinished:
		// Workers are done (pass complete or aborted), but the cache may
		// still hold batches: exhaust it before reporting the outcome.
		select {
		case unit = <-impl.cache:
		default:
			impl.muErr.Lock()
			err = impl.err
			impl.muErr.Unlock()
			var zero B
			if err != nil {
				return zero, err
			}
			return zero, io.EOF
		}
	}
	l.itemsSeen += unit.items
	return unit.batch, nil
}

// Reset implements Loader: it aborts the pass in flight, waits for the
// workers to drain, and starts a fresh pass.
func (l *parallelLoader[I, B]) Reset() {
	impl := l.impl
	impl.stop()
	for {
		select {
		case <-impl.cache: // Discard batches from the aborted pass.
		case <-impl.passFinished:
			l.itemsSeen = 0
			l.impl = l.startPass()
			return
		}
	}
}

// Progress implements Loader. Items counts raw items of batches delivered
// to the consumer, not items pulled by workers still in flight.
func (l *parallelLoader[I, B]) Progress() Progress {
	return Progress{Items: l.itemsSeen, TotalItems: l.dataset.Len()}
}
