package train

import (
	"github.com/avivg/burn-hl/ml/checkpoints"
	"github.com/avivg/burn-hl/ml/module"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// LearnerBuilder configures and creates a Learner. Calls can be cascaded:
//
//	learner, err := train.NewLearnerBuilder[Batch, float64, float64]().
//		NumEpochs(10).
//		GradsAccumulation(4).
//		WithFileCheckpointer(dir, 2).
//		WithCallback(myDashboard).
//		Build(model, optim)
type LearnerBuilder[B, TO, VO any] struct {
	err error

	numEpochs        int
	resumeEpoch      int
	gradAccumulation int
	devices          []module.Device

	callback Callback[TO, VO]
	logger   Logger

	checkpointerModel checkpoints.Checkpointer
	checkpointerOptim checkpoints.Checkpointer
}

// NewLearnerBuilder creates a LearnerBuilder. Defaults: 1 epoch, no
// gradient accumulation, single (implicit) device, no checkpointing, no
// callback, klog-backed logging.
func NewLearnerBuilder[B, TO, VO any]() *LearnerBuilder[B, TO, VO] {
	return &LearnerBuilder[B, TO, VO]{
		numEpochs: 1,
		logger:    DefaultLogger,
	}
}

func (b *LearnerBuilder[B, TO, VO]) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// NumEpochs sets how many epochs the training should last. It returns the
// builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) NumEpochs(numEpochs int) *LearnerBuilder[B, TO, VO] {
	if numEpochs <= 0 {
		exceptions.Panicf("LearnerBuilder.NumEpochs(%d): number of epochs must be > 0", numEpochs)
	}
	b.numEpochs = numEpochs
	return b
}

// Checkpoint sets the epoch from which training must resume. The model and
// optimizer snapshots for that epoch are loaded when Fit starts. It returns
// the builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) Checkpoint(epoch int) *LearnerBuilder[B, TO, VO] {
	if epoch <= 0 {
		exceptions.Panicf("LearnerBuilder.Checkpoint(%d): resume epoch must be > 0", epoch)
	}
	b.resumeEpoch = epoch
	return b
}

// GradsAccumulation enables gradient accumulation: the optimizer consumes
// the sum of the gradients of every `accumulation` steps. The effect is
// similar to multiplying the batch size and the learning rate by the
// accumulation amount -- consider reducing the learning rate to
// compensate. It returns the builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) GradsAccumulation(accumulation int) *LearnerBuilder[B, TO, VO] {
	if accumulation <= 0 {
		exceptions.Panicf("LearnerBuilder.GradsAccumulation(%d): accumulation must be > 0", accumulation)
	}
	b.gradAccumulation = accumulation
	return b
}

// Devices makes the training pass run across the given devices in
// parallel. The first device is the reduction target: every device's
// gradients are gathered there before optimizer updates. It returns the
// builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) Devices(devices ...module.Device) *LearnerBuilder[B, TO, VO] {
	if len(devices) == 0 {
		exceptions.Panicf("LearnerBuilder.Devices(): at least one device is required")
	}
	b.devices = devices
	return b
}

// WithFileCheckpointer registers file-backed checkpointing of model and
// optimizer state under dir, keeping the numKeep most recent snapshots per
// role. Saves run asynchronously; set numKeep to a minimum of two to be
// safe, since a crash during training might leave the newest snapshot
// half-written. It returns the builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) WithFileCheckpointer(dir string, numKeep int) *LearnerBuilder[B, TO, VO] {
	model, err := checkpoints.NewFileCheckpointer(dir, "model", numKeep)
	if err != nil {
		b.setError(errors.WithMessage(err, "LearnerBuilder.WithFileCheckpointer"))
		return b
	}
	optim, err := checkpoints.NewFileCheckpointer(dir, "optim", numKeep)
	if err != nil {
		b.setError(errors.WithMessage(err, "LearnerBuilder.WithFileCheckpointer"))
		return b
	}
	b.checkpointerModel = model
	b.checkpointerOptim = optim
	return b
}

// WithCallback registers the observer receiving progress notifications. It
// is wrapped to run asynchronously, so a slow observer does not stall the
// training loop. It returns the builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) WithCallback(callback Callback[TO, VO]) *LearnerBuilder[B, TO, VO] {
	b.callback = callback
	return b
}

// WithLogger injects the engine's observability sink. It returns the
// builder, so calls can be cascaded.
func (b *LearnerBuilder[B, TO, VO]) WithLogger(logger Logger) *LearnerBuilder[B, TO, VO] {
	b.logger = logger
	return b
}

// Build creates the Learner with the given model and optimizer.
func (b *LearnerBuilder[B, TO, VO]) Build(model Model[B, TO, VO], optim Optimizer[B, TO, VO]) (*Learner[B, TO, VO], error) {
	if b.err != nil {
		return nil, b.err
	}
	var callback Callback[TO, VO]
	if b.callback != nil {
		callback = NewAsyncCallback(b.callback)
	} else {
		callback = NopCallback[TO, VO]{}
	}
	learner := &Learner[B, TO, VO]{
		model:            model,
		optim:            optim,
		numEpochs:        b.numEpochs,
		resumeEpoch:      b.resumeEpoch,
		gradAccumulation: b.gradAccumulation,
		devices:          b.devices,
		callback:         callback,
		logger:           b.logger,
	}
	if b.checkpointerModel != nil {
		learner.checkpointerModel = checkpoints.NewAsyncCheckpointer(b.checkpointerModel)
		learner.checkpointerOptim = checkpoints.NewAsyncCheckpointer(b.checkpointerOptim)
	}
	return learner, nil
}
