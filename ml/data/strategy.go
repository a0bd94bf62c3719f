package data

// BatchStrategy decides how many raw items make up one batch and when an
// in-progress batch is complete. Strategies are stateful across a pass and
// are not safe for concurrent use -- each loader (or loader worker) owns its
// own instance.
type BatchStrategy[I any] interface {
	// Add incorporates one item into the in-progress batch.
	Add(item I)

	// IsComplete reports whether the in-progress batch reached its target
	// size.
	IsComplete() bool

	// IsEmpty reports whether no items were added since the last NewBatch.
	IsEmpty() bool

	// NewBatch returns the accumulated items in the order they were added
	// and resets the strategy for the next group.
	NewBatch() []I

	// Clone returns a fresh, empty strategy of the same kind and
	// configuration. Loader workers use it to get independent state.
	Clone() BatchStrategy[I]
}

// fixedBatchStrategy emits batches of a fixed target size. The final batch
// of a pass may be smaller: the loader flushes whatever remains.
type fixedBatchStrategy[I any] struct {
	items     []I
	batchSize int
}

// NewFixedBatchStrategy creates a BatchStrategy that completes a batch every
// batchSize items.
func NewFixedBatchStrategy[I any](batchSize int) BatchStrategy[I] {
	return &fixedBatchStrategy[I]{
		items:     make([]I, 0, batchSize),
		batchSize: batchSize,
	}
}

// Add implements BatchStrategy.
func (s *fixedBatchStrategy[I]) Add(item I) {
	s.items = append(s.items, item)
}

// IsComplete implements BatchStrategy.
func (s *fixedBatchStrategy[I]) IsComplete() bool {
	return len(s.items) >= s.batchSize
}

// IsEmpty implements BatchStrategy.
func (s *fixedBatchStrategy[I]) IsEmpty() bool {
	return len(s.items) == 0
}

// NewBatch implements BatchStrategy.
func (s *fixedBatchStrategy[I]) NewBatch() []I {
	batch := s.items
	s.items = make([]I, 0, s.batchSize)
	return batch
}

// Clone implements BatchStrategy.
func (s *fixedBatchStrategy[I]) Clone() BatchStrategy[I] {
	return NewFixedBatchStrategy[I](s.batchSize)
}
