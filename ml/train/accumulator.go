package train

import (
	"github.com/avivg/burn-hl/ml/module"
)

// GradientsAccumulator sums gradient contributions per parameter across
// steps. Summation is the whole mechanism: callers that want averaging (to
// keep the learning rate's effective scale stable under accumulation) scale
// the loss or the learning rate themselves.
//
// Reading the totals with Grads does not reset them; Reset is a distinct,
// explicit drain. The epoch drivers reset after every threshold-triggered
// optimizer update, so one accumulation window never carries contributions
// from the previous one.
type GradientsAccumulator struct {
	sums module.Gradients
}

// NewGradientsAccumulator creates an empty accumulator.
func NewGradientsAccumulator() *GradientsAccumulator {
	return &GradientsAccumulator{sums: make(module.Gradients)}
}

// Accumulate adds each gradient in grads elementwise into the running total
// for its ParamId, creating the entry on first contribution. Summation is
// commutative, so the order contributions arrive in (across workers or
// devices) does not change the total.
func (a *GradientsAccumulator) Accumulate(grads module.Gradients) {
	for id, grad := range grads {
		if current, found := a.sums[id]; found {
			a.sums[id] = current.Add(grad)
		} else {
			a.sums[id] = grad
		}
	}
}

// Grads returns the accumulated totals as a gradient set usable by the
// optimizer. The internal totals are left untouched.
func (a *GradientsAccumulator) Grads() module.Gradients {
	grads := make(module.Gradients, len(a.sums))
	for id, grad := range a.sums {
		grads[id] = grad
	}
	return grads
}

// Reset drops every accumulated total.
func (a *GradientsAccumulator) Reset() {
	a.sums = make(module.Gradients)
}

// NumParams returns how many parameters have a contribution accumulated.
func (a *GradientsAccumulator) NumParams() int {
	return len(a.sums)
}
