package data

// Batcher collates an ordered sequence of raw items into one batch-shaped
// unit. It must be a pure function of its inputs and safe for concurrent
// use: the multi-threaded loader shares one Batcher across all workers.
type Batcher[I, B any] interface {
	Collate(items []I) (B, error)
}

// BatcherFunc adapts a plain function to the Batcher interface.
type BatcherFunc[I, B any] func(items []I) (B, error)

// Collate implements Batcher.
func (f BatcherFunc[I, B]) Collate(items []I) (B, error) {
	return f(items)
}
