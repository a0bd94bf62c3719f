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

// Package checkpoints implements durable, epoch-numbered snapshots of model
// and optimizer state: a synchronous file-backed Checkpointer with bounded
// retention, and an asynchronous wrapper that keeps persistence off the
// training loop.
//
// The storage layout is one directory per run, with one subdirectory per
// role ("model", "optim"). Each role directory holds numbered files, e.g.
// `model/model-7.json` for epoch 7, and only the most recent `numKeep`
// files per role survive a successful save.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/avivg/burn-hl/ml/module"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DirPermMode is the default directory creation permission (before umask)
// used.
var DirPermMode = os.FileMode(0770)

// Checkpointer persists and retrieves numbered state snapshots.
type Checkpointer interface {
	// Save persists the snapshot for the given epoch. After a successful
	// save, snapshots beyond the retention limit are deleted, oldest first.
	Save(epoch int, state module.State) error

	// Load retrieves the snapshot saved for the given epoch.
	Load(epoch int) (module.State, error)
}

// FileCheckpointer stores snapshots as JSON files under `<dir>/<role>/`.
type FileCheckpointer struct {
	dir     string
	role    string
	numKeep int
}

// NewFileCheckpointer creates a Checkpointer for one role ("model",
// "optim") under dir, keeping the numKeep most recent snapshots. A numKeep
// < 0 disables pruning. It creates the role directory if needed.
func NewFileCheckpointer(dir, role string, numKeep int) (*FileCheckpointer, error) {
	roleDir := filepath.Join(dir, role)
	fi, err := os.Stat(roleDir)
	if err == nil && !fi.IsDir() {
		return nil, errors.Errorf("checkpoint path %q exists but is not a directory", roleDir)
	}
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to os.Stat(%q)", roleDir)
		}
		if err = os.MkdirAll(roleDir, DirPermMode); err != nil {
			return nil, errors.Wrapf(err, "trying to create checkpoint dir %q", roleDir)
		}
	}
	return &FileCheckpointer{dir: roleDir, role: role, numKeep: numKeep}, nil
}

// String implements Stringer.
func (c *FileCheckpointer) String() string {
	return fmt.Sprintf("checkpoints.FileCheckpointer(%q)", c.dir)
}

func (c *FileCheckpointer) fileName(epoch int) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s-%d.json", c.role, epoch))
}

// Save implements Checkpointer. The snapshot is fully written and closed
// before any older snapshot is deleted.
func (c *FileCheckpointer) Save(epoch int, state module.State) error {
	fileName := c.fileName(epoch)
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create snapshot file %q", c, fileName)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "\t")
	if err = enc.Encode(&state); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "%s: failed to write snapshot %q", c, fileName)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "%s: failed to close snapshot %q", c, fileName)
	}
	if fi, err := os.Stat(fileName); err == nil {
		klog.V(1).Infof("%s: saved epoch %d (%s)", c, epoch, humanize.IBytes(uint64(fi.Size())))
	}
	return c.keepNSnapshots()
}

// Load implements Checkpointer. A missing snapshot is a plain error; a
// snapshot that cannot be decoded is reported as a module.LoadingError.
func (c *FileCheckpointer) Load(epoch int) (state module.State, err error) {
	fileName := c.fileName(epoch)
	f, err := os.Open(fileName)
	if err != nil {
		return state, errors.Wrapf(err, "%s: failed to open snapshot for epoch %d", c, epoch)
	}
	defer func() {
		_ = f.Close() // Discard close error on read path.
	}()
	if err = json.NewDecoder(f).Decode(&state); err != nil {
		return state, module.LoadingErrorf("%s: snapshot %q holds an incompatible representation: %v", c, fileName, err)
	}
	if state.Entries == nil {
		return state, module.LoadingErrorf("%s: snapshot %q holds no state entries", c, fileName)
	}
	return state, nil
}

var snapshotEpochRegexp = regexp.MustCompile(`^.*-(\d+)\.json$`)

// List returns the epochs with a stored snapshot, in increasing order.
func (c *FileCheckpointer) List() (epochs []int, err error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: listing snapshots", c)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := snapshotEpochRegexp.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		epoch, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		epochs = append(epochs, epoch)
	}
	sort.Ints(epochs)
	return epochs, nil
}

// keepNSnapshots removes the oldest snapshots in excess of numKeep.
func (c *FileCheckpointer) keepNSnapshots() error {
	if c.numKeep < 0 {
		return nil
	}
	epochs, err := c.List()
	if err != nil {
		return err
	}
	if len(epochs) <= c.numKeep {
		return nil
	}
	for _, epoch := range epochs[:len(epochs)-c.numKeep] {
		fileName := c.fileName(epoch)
		if err = os.Remove(fileName); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "%s: failed to remove excess snapshot %q", c, fileName)
		}
	}
	return nil
}
