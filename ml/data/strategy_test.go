package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBatchStrategy(t *testing.T) {
	strategy := NewFixedBatchStrategy[int](3)
	assert.True(t, strategy.IsEmpty())
	assert.False(t, strategy.IsComplete())

	strategy.Add(10)
	strategy.Add(11)
	assert.False(t, strategy.IsEmpty())
	assert.False(t, strategy.IsComplete())

	strategy.Add(12)
	assert.True(t, strategy.IsComplete())

	batch := strategy.NewBatch()
	assert.Equal(t, []int{10, 11, 12}, batch, "items must come back in the order they were added")
	assert.True(t, strategy.IsEmpty(), "NewBatch must reset the strategy")
	assert.False(t, strategy.IsComplete())
}

func TestFixedBatchStrategy_PartialFlush(t *testing.T) {
	strategy := NewFixedBatchStrategy[string](4)
	strategy.Add("a")
	strategy.Add("b")
	require.False(t, strategy.IsComplete())

	// The loader flushes the trailing group at end-of-dataset even though
	// it never completed.
	batch := strategy.NewBatch()
	assert.Equal(t, []string{"a", "b"}, batch)
	assert.True(t, strategy.IsEmpty())
}

func TestFixedBatchStrategy_Clone(t *testing.T) {
	strategy := NewFixedBatchStrategy[int](2)
	strategy.Add(1)

	clone := strategy.Clone()
	assert.True(t, clone.IsEmpty(), "clone must start empty")

	clone.Add(7)
	clone.Add(8)
	assert.True(t, clone.IsComplete(), "clone must keep the configured batch size")
	assert.False(t, strategy.IsComplete(), "clone must not share state with the original")
}
