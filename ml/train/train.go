/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package train implements the training execution engine: epoch drivers for
// single and multiple devices, gradient accumulation, and the Learner that
// ties data loading, optimization, progress reporting and checkpointing
// together.
//
// The engine is generic over three types: B, the batch consumed by a model
// step; TO, the output visible to observers for a training step; and VO,
// the same for a validation step. The numeric backend stays behind the
// contracts of the module package.
package train

import (
	"github.com/avivg/burn-hl/ml/module"
)

// StepOutput is the result of one training step: the model's visible output
// for the batch, plus the gradients computed for every trainable parameter.
type StepOutput[TO any] struct {
	Item  TO
	Grads module.Gradients
}

// Model is the trainable module driven by the engine. Models are passed by
// value into each epoch driver and returned, possibly replaced by an
// updated value: the current state is single-owned and there is no shared
// mutation between steps.
type Model[B, TO, VO any] interface {
	// TrainStep runs forward and backward for one batch.
	TrainStep(batch B) (StepOutput[TO], error)

	// Detach returns a gradient-free view of the model, used for validation
	// passes. The conversion must not copy or mutate parameter data. Do not
	// train the model while a detached view is stepping.
	Detach() InferenceModel[B, VO]

	// To returns a replica of the model with its parameters on the given
	// device.
	To(device module.Device) Model[B, TO, VO]

	// State returns the serializable parameter state, keyed by ParamId.
	State() module.State

	// Load returns the model with its parameter state restored from a
	// snapshot. An incompatible snapshot is reported as a
	// module.LoadingError.
	Load(state module.State) (Model[B, TO, VO], error)
}

// InferenceModel is the gradient-free projection of a Model: it computes
// outputs without building gradients.
type InferenceModel[B, VO any] interface {
	ValidStep(batch B) (VO, error)
}

// Optimizer consumes one gradient set and returns the updated model. Its
// state is (de)serializable keyed by ParamId, for checkpoint round-trips.
type Optimizer[B, TO, VO any] interface {
	Update(model Model[B, TO, VO], grads module.Gradients) Model[B, TO, VO]
	State() module.State
	Load(state module.State) (Optimizer[B, TO, VO], error)
}
