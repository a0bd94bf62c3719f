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

// Package module defines the narrow contracts through which the training
// engine talks to the numeric backend and to the model's parameter tree:
// parameter identities (ParamId), opaque tensors, devices, gradient sets and
// serialized state.
//
// The engine never looks inside a Tensor -- it only sums gradients
// (Tensor.Add), moves them across devices (Tensor.To) and persists opaque
// state snapshots. Everything numeric lives behind these interfaces.
package module

import (
	"fmt"

	"github.com/google/uuid"
	xslices "golang.org/x/exp/slices"
)

// ParamId is the stable, process-unique identity of one trainable tensor
// parameter. The same ParamId refers to the same logical parameter across
// forward passes, gradient computation and optimizer state lookups, for the
// lifetime of the module instance.
type ParamId string

// NewParamId returns a fresh process-unique ParamId.
func NewParamId() ParamId {
	return ParamId(uuid.NewString())
}

// Device identifies one compute device. The engine treats it as opaque: it
// only passes devices through to Tensor.To and model replication.
type Device interface {
	fmt.Stringer
}

// Tensor is an opaque handle to a value owned by the numeric backend.
type Tensor interface {
	// Add returns a new tensor with the elementwise sum of the receiver and
	// other. Shapes must match; mismatches are a backend contract violation.
	Add(other Tensor) Tensor

	// To returns the tensor moved (or copied) to the given device.
	To(device Device) Tensor
}

// Gradients maps each parameter to the gradient tensor computed for it in
// one backward pass.
type Gradients map[ParamId]Tensor

// To returns the gradients with every tensor moved to the given device.
func (g Gradients) To(device Device) Gradients {
	moved := make(Gradients, len(g))
	for id, t := range g {
		moved[id] = t.To(device)
	}
	return moved
}

// ParamIds returns the ParamIds present in the gradient set, sorted, so
// enumeration is deterministic.
func (g Gradients) ParamIds() []ParamId {
	ids := make([]ParamId, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	xslices.Sort(ids)
	return ids
}

// State is a flat, serializable snapshot of model or optimizer data, keyed
// by the ParamId of the parameter each entry belongs to. The entry payload
// is produced and consumed by the backend; the engine only persists it.
type State struct {
	// Entries maps a parameter to its serialized payload.
	Entries map[ParamId]StateEntry `json:"entries"`
}

// StateEntry is one serialized parameter (or per-parameter optimizer state).
type StateEntry struct {
	Dims  []int  `json:"dims"`
	DType string `json:"dtype"`
	Data  []byte `json:"data"`
}

// ParamIds returns the ParamIds present in the state, sorted.
func (s State) ParamIds() []ParamId {
	ids := make([]ParamId, 0, len(s.Entries))
	for id := range s.Entries {
		ids = append(ids, id)
	}
	xslices.Sort(ids)
	return ids
}

// LoadingError reports a stored state that cannot be applied to the target
// model or optimizer -- a shape or representation mismatch. It is fatal to
// the load call; the caller may recover by choosing not to resume.
type LoadingError struct {
	Message string
}

// Error implements the error interface.
func (e *LoadingError) Error() string {
	return fmt.Sprintf("loading error: %s", e.Message)
}

// LoadingErrorf creates a LoadingError with a formatted message.
func LoadingErrorf(format string, args ...any) *LoadingError {
	return &LoadingError{Message: fmt.Sprintf(format, args...)}
}
