package train

import (
	"io"

	"github.com/avivg/burn-hl/ml/checkpoints"
	"github.com/avivg/burn-hl/ml/data"
	"github.com/avivg/burn-hl/ml/module"
	"github.com/pkg/errors"
)

// Learner owns the model and optimizer for the duration of a training run
// and drives the epoch loop: train pass, checkpoint, validation pass.
//
// Create it with NewLearnerBuilder.
type Learner[B, TO, VO any] struct {
	model Model[B, TO, VO]
	optim Optimizer[B, TO, VO]

	numEpochs        int
	resumeEpoch      int // 0 means a fresh run.
	gradAccumulation int
	devices          []module.Device

	callback Callback[TO, VO]
	logger   Logger

	checkpointerModel checkpoints.Checkpointer
	checkpointerOptim checkpoints.Checkpointer
}

// Fit runs the configured number of epochs over trainData, validating over
// validData after each epoch (validData may be nil). It returns the trained
// model.
//
// Fit runs a whole training run and releases the learner's asynchronous
// helpers on return; a Learner is not reusable after Fit.
func (l *Learner[B, TO, VO]) Fit(trainData, validData data.Loader[B]) (Model[B, TO, VO], error) {
	defer l.closeAll()

	startingEpoch := 1
	if l.resumeEpoch > 0 {
		if err := l.loadCheckpoint(l.resumeEpoch); err != nil {
			return l.model, errors.WithMessagef(err, "resuming from checkpoint at epoch %d", l.resumeEpoch)
		}
		startingEpoch = l.resumeEpoch + 1
	}

	for epoch := startingEpoch; epoch <= l.numEpochs; epoch++ {
		driver := &trainEpoch[B, TO, VO]{
			loader:           trainData,
			epoch:            epoch,
			epochTotal:       l.numEpochs,
			gradAccumulation: l.gradAccumulation,
			logger:           l.logger,
		}
		var err error
		if len(l.devices) > 1 {
			l.model, l.optim, err = driver.runMultiDevice(l.model, l.optim, l.callback, l.devices)
		} else {
			l.model, l.optim, err = driver.run(l.model, l.optim, l.callback)
		}
		if err != nil {
			return l.model, err
		}
		trainData.Reset()

		l.saveCheckpoint(epoch)

		if validData != nil {
			valid := &validEpoch[B, TO, VO]{
				loader:     validData,
				epoch:      epoch,
				epochTotal: l.numEpochs,
				logger:     l.logger,
			}
			if err = valid.run(l.model, l.callback); err != nil {
				return l.model, err
			}
			validData.Reset()
		}
	}
	return l.model, nil
}

// saveCheckpoint persists model and optimizer state for the epoch. Save
// failures are logged and swallowed: training continues, only that snapshot
// is missing.
func (l *Learner[B, TO, VO]) saveCheckpoint(epoch int) {
	if l.checkpointerModel != nil {
		if err := l.checkpointerModel.Save(epoch, l.model.State()); err != nil {
			l.logger.Warningf("model checkpoint for epoch %d failed: %+v", epoch, err)
		}
	}
	if l.checkpointerOptim != nil {
		if err := l.checkpointerOptim.Save(epoch, l.optim.State()); err != nil {
			l.logger.Warningf("optimizer checkpoint for epoch %d failed: %+v", epoch, err)
		}
	}
}

// loadCheckpoint restores model and optimizer state from the given epoch's
// snapshots. Failures here are hard errors: the caller asked to resume.
func (l *Learner[B, TO, VO]) loadCheckpoint(epoch int) error {
	if l.checkpointerModel == nil {
		return errors.Errorf("no checkpointer configured, cannot resume")
	}
	state, err := l.checkpointerModel.Load(epoch)
	if err != nil {
		return err
	}
	if l.model, err = l.model.Load(state); err != nil {
		return errors.WithMessage(err, "restoring model state")
	}
	if l.checkpointerOptim != nil {
		if state, err = l.checkpointerOptim.Load(epoch); err != nil {
			return err
		}
		if l.optim, err = l.optim.Load(state); err != nil {
			return errors.WithMessage(err, "restoring optimizer state")
		}
	}
	l.logger.Infof("resumed from checkpoint at epoch %d", epoch)
	return nil
}

// closeAll flushes and stops the asynchronous callback and checkpointers,
// if the learner owns any.
func (l *Learner[B, TO, VO]) closeAll() {
	for _, c := range []any{l.callback, l.checkpointerModel, l.checkpointerOptim} {
		if closer, ok := c.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}
