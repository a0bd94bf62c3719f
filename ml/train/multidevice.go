package train

import (
	"io"

	"github.com/avivg/burn-hl/ml/data"
	"github.com/avivg/burn-hl/ml/module"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// multiDeviceStep fans a batch stream out across devices: one forward/
// backward step per device in parallel, gradients gathered back on the main
// device (devices[0]).
type multiDeviceStep[B, TO, VO any] struct {
	devices []module.Device
}

// step pulls up to len(devices) batches from the loader and runs one step
// per device in parallel. When the loader runs out before filling every
// device, only the gradients actually produced are returned; an empty
// result signals end-of-pass.
func (s *multiDeviceStep[B, TO, VO]) step(
	loader data.Loader[B], model Model[B, TO, VO],
) ([]StepOutput[TO], error) {
	batches := make([]B, 0, len(s.devices))
	for range s.devices {
		batch, err := loader.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if len(batches) == 0 {
		return nil, nil
	}

	main := s.devices[0]
	results := make([]StepOutput[TO], len(batches))
	var group errgroup.Group
	for i, batch := range batches {
		device := s.devices[i]
		group.Go(func() error {
			replica := model.To(device)
			out, err := replica.TrainStep(batch)
			if err != nil {
				return errors.WithMessagef(err, "step on device %s", device)
			}
			out.Grads = out.Grads.To(main)
			results[i] = out
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runMultiDevice executes the training pass across several devices.
// Reduction across devices and accumulation across micro-batches share one
// counter and one accumulator: each device's contribution counts as one
// unit, so the effective threshold is the configured accumulation (at least
// 1) times the number of devices.
func (e *trainEpoch[B, TO, VO]) runMultiDevice(
	model Model[B, TO, VO], optim Optimizer[B, TO, VO], callback Callback[TO, VO],
	devices []module.Device,
) (Model[B, TO, VO], Optimizer[B, TO, VO], error) {
	e.logger.Infof("executing training pass for epoch %d on %d devices", e.epoch, len(devices))
	accumulation := max(e.gradAccumulation, 1) * len(devices)
	step := &multiDeviceStep[B, TO, VO]{devices: devices}
	accumulator := NewGradientsAccumulator()
	accumulationCurrent := 0
	iteration := 0

	for {
		outs, err := step.step(e.loader, model)
		if err != nil {
			return model, optim, errors.WithMessagef(err, "train epoch %d: failed at iteration %d", e.epoch, iteration+1)
		}
		if len(outs) == 0 {
			break
		}
		for _, out := range outs {
			iteration++
			accumulator.Accumulate(out.Grads)
			accumulationCurrent++
			if accumulationCurrent >= accumulation {
				model = optim.Update(model, accumulator.Grads())
				accumulator.Reset()
				accumulationCurrent = 0
			}
			callback.OnTrainItem(Item[TO]{
				Item:       out.Item,
				Progress:   e.loader.Progress(),
				Epoch:      e.epoch,
				EpochTotal: e.epochTotal,
				Iteration:  iteration,
			})
		}
	}
	callback.OnTrainEndEpoch(e.epoch)
	return model, optim, nil
}
