package data

import (
	"io"

	"github.com/pkg/errors"
)

// Progress counts items processed within the current pass. It is meant for
// observability only, never for control flow.
type Progress struct {
	// Items processed so far in this pass.
	Items int

	// TotalItems in the pass, or 0 if unknown.
	TotalItems int
}

// Loader produces a restartable, finite sequence of batches from a dataset.
//
// Yield returns the next batch of the current pass, or io.EOF once the pass
// is exhausted. Reset starts a fresh pass. Progress reports how far the
// current pass has advanced.
type Loader[B any] interface {
	Yield() (B, error)
	Reset()
	Progress() Progress
}

// batchLoader is the single-threaded Loader: it walks the dataset in index
// order, feeding the batch strategy until each batch completes, and flushes
// the final partial batch at end-of-dataset.
type batchLoader[I, B any] struct {
	dataset  Dataset[I]
	strategy BatchStrategy[I]
	batcher  Batcher[I, B]
	cursor   int
}

// NewBatchLoader creates a single-threaded Loader over the dataset. It is
// deterministic: two passes deliver the same batches in the same order.
func NewBatchLoader[I, B any](dataset Dataset[I], strategy BatchStrategy[I], batcher Batcher[I, B]) Loader[B] {
	return &batchLoader[I, B]{
		dataset:  dataset,
		strategy: strategy,
		batcher:  batcher,
	}
}

// Yield implements Loader.
func (l *batchLoader[I, B]) Yield() (batch B, err error) {
	for l.cursor < l.dataset.Len() {
		item, err := l.dataset.At(l.cursor)
		if err != nil {
			var zero B
			return zero, errors.WithMessagef(err, "loading item %d of dataset %q", l.cursor, l.dataset.Name())
		}
		l.cursor++
		l.strategy.Add(item)
		if l.strategy.IsComplete() {
			return l.collate()
		}
	}
	// End of dataset: flush the trailing partial batch, if any.
	if !l.strategy.IsEmpty() {
		return l.collate()
	}
	var zero B
	return zero, io.EOF
}

func (l *batchLoader[I, B]) collate() (batch B, err error) {
	items := l.strategy.NewBatch()
	batch, err = l.batcher.Collate(items)
	if err != nil {
		var zero B
		return zero, errors.WithMessagef(err, "collating batch of %d items from dataset %q", len(items), l.dataset.Name())
	}
	return batch, nil
}

// Reset implements Loader.
func (l *batchLoader[I, B]) Reset() {
	l.cursor = 0
	if !l.strategy.IsEmpty() {
		l.strategy.NewBatch() // Discard leftovers from an aborted pass.
	}
}

// Progress implements Loader.
func (l *batchLoader[I, B]) Progress() Progress {
	return Progress{Items: l.cursor, TotalItems: l.dataset.Len()}
}
