package train

import (
	"os"
	"sync"

	"github.com/avivg/burn-hl/ml/data"
	"github.com/avivg/burn-hl/ml/module"
	"github.com/pkg/errors"
)

// Test doubles shared by the package tests: a scalar "tensor" that tracks
// the device it lives on, a model that sums its batch, and an optimizer
// that records every gradient set it applies.

type testDevice string

func (d testDevice) String() string { return string(d) }

// scalarTensor is a one-element tensor tagged with its current device.
type scalarTensor struct {
	value  float64
	device module.Device
}

func (t scalarTensor) Add(other module.Tensor) module.Tensor {
	o := other.(scalarTensor)
	return scalarTensor{value: t.value + o.value, device: t.device}
}

func (t scalarTensor) To(device module.Device) module.Tensor {
	return scalarTensor{value: t.value, device: device}
}

// modelState is shared by every replica of a testModel, so step counts and
// failure injection survive To() replication.
type modelState struct {
	id module.ParamId

	mu     sync.Mutex
	steps  int
	failAt int // 1-based step at which TrainStep fails; 0 disables.

	loaded int // how many times Load was called
}

// testModel sums the batch: the step output is the sum, and the gradient
// for its single parameter is a scalarTensor holding the same sum.
type testModel struct {
	state  *modelState
	device module.Device
}

func newTestModel() testModel {
	return testModel{state: &modelState{id: module.NewParamId()}}
}

func (m testModel) TrainStep(batch []int) (StepOutput[float64], error) {
	m.state.mu.Lock()
	m.state.steps++
	step := m.state.steps
	failAt := m.state.failAt
	m.state.mu.Unlock()
	if failAt > 0 && step == failAt {
		return StepOutput[float64]{}, errors.Errorf("synthetic step failure")
	}
	sum := 0.0
	for _, v := range batch {
		sum += float64(v)
	}
	return StepOutput[float64]{
		Item:  sum,
		Grads: module.Gradients{m.state.id: scalarTensor{value: sum, device: m.device}},
	}, nil
}

func (m testModel) Detach() InferenceModel[[]int, float64] {
	return testInference{state: m.state}
}

func (m testModel) To(device module.Device) Model[[]int, float64, float64] {
	return testModel{state: m.state, device: device}
}

func (m testModel) State() module.State {
	return module.State{
		Entries: map[module.ParamId]module.StateEntry{
			m.state.id: {Dims: []int{1}, DType: "float64", Data: []byte{1}},
		},
	}
}

func (m testModel) Load(state module.State) (Model[[]int, float64, float64], error) {
	if _, found := state.Entries[m.state.id]; !found {
		return m, module.LoadingErrorf("state has no entry for parameter %s", m.state.id)
	}
	m.state.mu.Lock()
	m.state.loaded++
	m.state.mu.Unlock()
	return m, nil
}

// testInference is the gradient-free projection of testModel. It shares
// the model's state without copying, and never touches gradients.
type testInference struct {
	state *modelState
}

func (i testInference) ValidStep(batch []int) (float64, error) {
	sum := 0.0
	for _, v := range batch {
		sum += float64(v)
	}
	return sum, nil
}

// testOptim records the gradient sets it consumed.
type testOptim struct {
	state *optimState
}

type optimState struct {
	mu      sync.Mutex
	applied []module.Gradients
	loaded  int
}

func newTestOptim() testOptim {
	return testOptim{state: &optimState{}}
}

func (o testOptim) Update(model Model[[]int, float64, float64], grads module.Gradients) Model[[]int, float64, float64] {
	o.state.mu.Lock()
	o.state.applied = append(o.state.applied, grads)
	o.state.mu.Unlock()
	return model
}

func (o testOptim) State() module.State {
	return module.State{
		Entries: map[module.ParamId]module.StateEntry{
			"momentum": {Dims: []int{1}, DType: "float64", Data: []byte{2}},
		},
	}
}

func (o testOptim) Load(state module.State) (Optimizer[[]int, float64, float64], error) {
	if _, found := state.Entries["momentum"]; !found {
		return o, module.LoadingErrorf("state has no momentum entry")
	}
	o.state.mu.Lock()
	o.state.loaded++
	o.state.mu.Unlock()
	return o, nil
}

func (o testOptim) numUpdates() int {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	return len(o.state.applied)
}

// appliedScalars returns, per update, the scalar gradient applied for the
// given parameter.
func (o testOptim) appliedScalars(id module.ParamId) []float64 {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	values := make([]float64, 0, len(o.state.applied))
	for _, grads := range o.state.applied {
		values = append(values, grads[id].(scalarTensor).value)
	}
	return values
}

// recordingCallback records every notification, in delivery order.
type recordingCallback struct {
	mu         sync.Mutex
	trainItems []Item[float64]
	validItems []Item[float64]
	trainEnds  []int
	validEnds  []int
}

func (c *recordingCallback) OnTrainItem(item Item[float64]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trainItems = append(c.trainItems, item)
}

func (c *recordingCallback) OnValidItem(item Item[float64]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validItems = append(c.validItems, item)
}

func (c *recordingCallback) OnTrainEndEpoch(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trainEnds = append(c.trainEnds, epoch)
}

func (c *recordingCallback) OnValidEndEpoch(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validEnds = append(c.validEnds, epoch)
}

func writeEmptyFile(path string) error {
	return os.WriteFile(path, nil, 0660)
}

// intBatches builds a single-threaded loader over n items batched in
// groups of batchSize. Each batch is the slice of raw ints.
func intBatches(n, batchSize int) data.Loader[[]int] {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	batcher := data.BatcherFunc[int, []int](func(items []int) ([]int, error) {
		batch := make([]int, len(items))
		copy(batch, items)
		return batch, nil
	})
	return data.NewLoaderBuilder[int, []int](batcher).
		BatchSize(batchSize).
		Build(data.NewSliceDataset("ints", items))
}
