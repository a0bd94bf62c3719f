package train

import (
	"testing"

	"github.com/avivg/burn-hl/ml/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grads(id module.ParamId, value float64) module.Gradients {
	return module.Gradients{id: scalarTensor{value: value}}
}

func scalarOf(t *testing.T, g module.Gradients, id module.ParamId) float64 {
	t.Helper()
	tensor, found := g[id]
	require.True(t, found, "no gradient for parameter %s", id)
	return tensor.(scalarTensor).value
}

func TestGradientsAccumulator_Sums(t *testing.T) {
	id := module.NewParamId()
	accumulator := NewGradientsAccumulator()
	accumulator.Accumulate(grads(id, 1.5))
	accumulator.Accumulate(grads(id, 2.0))
	accumulator.Accumulate(grads(id, -0.5))
	require.Equal(t, 1, accumulator.NumParams())
	assert.Equal(t, 3.0, scalarOf(t, accumulator.Grads(), id))
}

func TestGradientsAccumulator_DisjointParams(t *testing.T) {
	idA, idB := module.NewParamId(), module.NewParamId()
	accumulator := NewGradientsAccumulator()
	accumulator.Accumulate(grads(idA, 1.0))
	accumulator.Accumulate(grads(idB, 10.0))
	accumulator.Accumulate(module.Gradients{
		idA: scalarTensor{value: 2.0},
		idB: scalarTensor{value: 20.0},
	})
	require.Equal(t, 2, accumulator.NumParams())
	sums := accumulator.Grads()
	assert.Equal(t, 3.0, scalarOf(t, sums, idA))
	assert.Equal(t, 30.0, scalarOf(t, sums, idB))
}

// Grads must be a read, not a drain: repeated calls without new
// contributions return the same sums.
func TestGradientsAccumulator_GradsDoesNotReset(t *testing.T) {
	id := module.NewParamId()
	accumulator := NewGradientsAccumulator()
	accumulator.Accumulate(grads(id, 4.0))
	assert.Equal(t, 4.0, scalarOf(t, accumulator.Grads(), id))
	assert.Equal(t, 4.0, scalarOf(t, accumulator.Grads(), id))

	accumulator.Accumulate(grads(id, 1.0))
	assert.Equal(t, 5.0, scalarOf(t, accumulator.Grads(), id))
}

func TestGradientsAccumulator_Reset(t *testing.T) {
	id := module.NewParamId()
	accumulator := NewGradientsAccumulator()
	accumulator.Accumulate(grads(id, 7.0))
	accumulator.Reset()
	require.Equal(t, 0, accumulator.NumParams())
	assert.Empty(t, accumulator.Grads())

	// Usable again after a reset.
	accumulator.Accumulate(grads(id, 2.0))
	assert.Equal(t, 2.0, scalarOf(t, accumulator.Grads(), id))
}
