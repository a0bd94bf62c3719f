package train

import (
	"io"

	"github.com/avivg/burn-hl/ml/data"
	"github.com/pkg/errors"
)

// trainEpoch drives one full training pass over a loader: model step,
// gradient handling, optimizer update, progress reporting.
type trainEpoch[B, TO, VO any] struct {
	loader     data.Loader[B]
	epoch      int
	epochTotal int

	// gradAccumulation is the accumulation threshold; 0 updates the
	// optimizer on every batch.
	gradAccumulation int

	logger Logger
}

// run executes the pass on a single device. It returns the (possibly
// updated) model and optimizer; on error, no optimizer update was applied
// for the batch that failed.
//
// With accumulation threshold K, the optimizer is updated once every K
// contributions; a trailing group smaller than K at end-of-pass is
// discarded, never applied.
func (e *trainEpoch[B, TO, VO]) run(
	model Model[B, TO, VO], optim Optimizer[B, TO, VO], callback Callback[TO, VO],
) (Model[B, TO, VO], Optimizer[B, TO, VO], error) {
	e.logger.Infof("executing training pass for epoch %d", e.epoch)
	accumulator := NewGradientsAccumulator()
	accumulationCurrent := 0
	iteration := 0

	for {
		batch, err := e.loader.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model, optim, errors.WithMessagef(err, "train epoch %d: failed reading batch after iteration %d", e.epoch, iteration)
		}
		iteration++

		out, err := model.TrainStep(batch)
		if err != nil {
			return model, optim, errors.WithMessagef(err, "train epoch %d: step failed at iteration %d", e.epoch, iteration)
		}

		if e.gradAccumulation > 0 {
			accumulator.Accumulate(out.Grads)
			accumulationCurrent++
			if accumulationCurrent >= e.gradAccumulation {
				model = optim.Update(model, accumulator.Grads())
				accumulator.Reset()
				accumulationCurrent = 0
			}
		} else {
			model = optim.Update(model, out.Grads)
		}

		callback.OnTrainItem(Item[TO]{
			Item:       out.Item,
			Progress:   e.loader.Progress(),
			Epoch:      e.epoch,
			EpochTotal: e.epochTotal,
			Iteration:  iteration,
		})
	}
	callback.OnTrainEndEpoch(e.epoch)
	return model, optim, nil
}

// validEpoch drives one full validation pass: strictly read-only, stepping
// the model's gradient-free projection.
type validEpoch[B, TO, VO any] struct {
	loader     data.Loader[B]
	epoch      int
	epochTotal int
	logger     Logger
}

func (e *validEpoch[B, TO, VO]) run(model Model[B, TO, VO], callback Callback[TO, VO]) error {
	e.logger.Infof("executing validation pass for epoch %d", e.epoch)
	inference := model.Detach()
	iteration := 0

	for {
		batch, err := e.loader.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WithMessagef(err, "valid epoch %d: failed reading batch after iteration %d", e.epoch, iteration)
		}
		iteration++

		out, err := inference.ValidStep(batch)
		if err != nil {
			return errors.WithMessagef(err, "valid epoch %d: step failed at iteration %d", e.epoch, iteration)
		}

		callback.OnValidItem(Item[VO]{
			Item:       out,
			Progress:   e.loader.Progress(),
			Epoch:      e.epoch,
			EpochTotal: e.epochTotal,
			Iteration:  iteration,
		})
	}
	callback.OnValidEndEpoch(e.epoch)
	return nil
}
