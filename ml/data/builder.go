package data

import (
	"github.com/gomlx/exceptions"
)

// LoaderBuilder configures and creates a Loader. Calls can be cascaded:
//
//	loader := data.NewLoaderBuilder[Item, Batch](batcher).
//		BatchSize(32).
//		Shuffle(42).
//		NumWorkers(4).
//		Build(dataset)
type LoaderBuilder[I, B any] struct {
	batcher    Batcher[I, B]
	batchSize  int
	seed       uint64
	shuffle    bool
	numWorkers int
}

// NewLoaderBuilder creates a LoaderBuilder with the given batcher. Defaults:
// batch size 1, no shuffling, single-threaded.
func NewLoaderBuilder[I, B any](batcher Batcher[I, B]) *LoaderBuilder[I, B] {
	return &LoaderBuilder[I, B]{
		batcher:   batcher,
		batchSize: 1,
	}
}

// BatchSize sets the number of items per batch. The final batch of a pass
// may be smaller. It returns the builder, so calls can be cascaded.
func (b *LoaderBuilder[I, B]) BatchSize(batchSize int) *LoaderBuilder[I, B] {
	if batchSize <= 0 {
		exceptions.Panicf("LoaderBuilder.BatchSize(%d): batch size must be > 0", batchSize)
	}
	b.batchSize = batchSize
	return b
}

// Shuffle makes the loader iterate the dataset through an index permutation
// drawn from seed. Loaders built with the same seed over the same dataset
// are deterministic. It returns the builder, so calls can be cascaded.
func (b *LoaderBuilder[I, B]) Shuffle(seed uint64) *LoaderBuilder[I, B] {
	b.shuffle = true
	b.seed = seed
	return b
}

// NumWorkers sets the size of the worker pool loading batches. Values <= 1
// keep the loader single-threaded. It returns the builder, so calls can be
// cascaded.
func (b *LoaderBuilder[I, B]) NumWorkers(numWorkers int) *LoaderBuilder[I, B] {
	b.numWorkers = numWorkers
	return b
}

// Build creates the configured Loader over the dataset.
func (b *LoaderBuilder[I, B]) Build(dataset Dataset[I]) Loader[B] {
	if b.shuffle {
		dataset = Shuffle(dataset, b.seed)
	}
	strategy := NewFixedBatchStrategy[I](b.batchSize)
	if b.numWorkers > 1 {
		return NewParallelLoader(dataset, strategy, b.batcher, b.numWorkers)
	}
	return NewBatchLoader(dataset, strategy, b.batcher)
}
