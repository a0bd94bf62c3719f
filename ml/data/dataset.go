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

// Package data implements the data-loading pipeline of the training engine:
// datasets and their views, batch strategies, batchers, and loaders that
// turn a dataset into a restartable sequence of batches -- optionally
// shuffled by seed and optionally fanned out across worker goroutines.
package data

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// Dataset is an ordered, indexable collection of raw items with a known
// length. Implementations must support concurrent read access: loaders may
// read from several goroutines at once.
type Dataset[I any] interface {
	// Name identifies the dataset, for error reporting and display.
	Name() string

	// Len returns the number of items.
	Len() int

	// At returns the item at the given index, 0 <= index < Len().
	At(index int) (I, error)
}

// SliceDataset is an in-memory Dataset backed by a slice. The slice is not
// copied and must not be mutated while loaders read from it.
type SliceDataset[I any] struct {
	name  string
	items []I
}

// NewSliceDataset creates a Dataset over the given items.
func NewSliceDataset[I any](name string, items []I) *SliceDataset[I] {
	return &SliceDataset[I]{name: name, items: items}
}

// Name implements Dataset.
func (ds *SliceDataset[I]) Name() string { return ds.name }

// Len implements Dataset.
func (ds *SliceDataset[I]) Len() int { return len(ds.items) }

// At implements Dataset.
func (ds *SliceDataset[I]) At(index int) (item I, err error) {
	if index < 0 || index >= len(ds.items) {
		err = errors.Errorf("dataset %q: index %d out of range [0, %d)", ds.name, index, len(ds.items))
		return
	}
	return ds.items[index], nil
}

// shuffledDataset is a view of another dataset through an index permutation.
type shuffledDataset[I any] struct {
	dataset Dataset[I]
	perm    []int
}

// Shuffle returns a view of the dataset with its indices permuted by a
// permutation drawn from seed. The permutation is computed once and is
// stable: two views built with the same seed over the same dataset see the
// items in the same order.
func Shuffle[I any](dataset Dataset[I], seed uint64) Dataset[I] {
	rng := rand.New(rand.NewPCG(seed, seed))
	return &shuffledDataset[I]{
		dataset: dataset,
		perm:    rng.Perm(dataset.Len()),
	}
}

// Name implements Dataset.
func (ds *shuffledDataset[I]) Name() string { return ds.dataset.Name() + " [shuffled]" }

// Len implements Dataset.
func (ds *shuffledDataset[I]) Len() int { return len(ds.perm) }

// At implements Dataset.
func (ds *shuffledDataset[I]) At(index int) (item I, err error) {
	if index < 0 || index >= len(ds.perm) {
		err = errors.Errorf("dataset %q: index %d out of range [0, %d)", ds.Name(), index, len(ds.perm))
		return
	}
	return ds.dataset.At(ds.perm[index])
}

// sliceView is a contiguous [start, end) view of another dataset. It is how
// the multi-threaded loader partitions work across workers.
type sliceView[I any] struct {
	dataset    Dataset[I]
	start, end int
}

func newSliceView[I any](dataset Dataset[I], start, end int) *sliceView[I] {
	return &sliceView[I]{dataset: dataset, start: start, end: end}
}

// Name implements Dataset.
func (ds *sliceView[I]) Name() string { return ds.dataset.Name() }

// Len implements Dataset.
func (ds *sliceView[I]) Len() int { return ds.end - ds.start }

// At implements Dataset.
func (ds *sliceView[I]) At(index int) (item I, err error) {
	if index < 0 || index >= ds.Len() {
		err = errors.Errorf("dataset %q: index %d out of range [0, %d)", ds.Name(), index, ds.Len())
		return
	}
	return ds.dataset.At(ds.start + index)
}
