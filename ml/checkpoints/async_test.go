package checkpoints

import (
	"sync"
	"testing"
	"time"

	"github.com/avivg/burn-hl/ml/module"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCheckpointer records the order saves are applied in, optionally
// sleeping to let submissions pile up.
type recordingCheckpointer struct {
	mu     sync.Mutex
	delay  time.Duration
	saved  []int
	states map[int]module.State
	failOn int
}

func newRecordingCheckpointer(delay time.Duration) *recordingCheckpointer {
	return &recordingCheckpointer{delay: delay, states: make(map[int]module.State), failOn: -1}
}

func (c *recordingCheckpointer) Save(epoch int, state module.State) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch == c.failOn {
		return errors.Errorf("broken disk at epoch %d", epoch)
	}
	c.saved = append(c.saved, epoch)
	c.states[epoch] = state
	return nil
}

func (c *recordingCheckpointer) Load(epoch int) (module.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, found := c.states[epoch]
	if !found {
		return state, errors.Errorf("no snapshot for epoch %d", epoch)
	}
	return state, nil
}

func (c *recordingCheckpointer) savedOrder() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.saved...)
}

func TestAsyncCheckpointer_SubmissionOrder(t *testing.T) {
	inner := newRecordingCheckpointer(time.Millisecond)
	async := NewAsyncCheckpointer(inner)

	for epoch := 1; epoch <= 6; epoch++ {
		require.NoError(t, async.Save(epoch, testState(epoch)))
	}
	async.Flush()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, inner.savedOrder(), "saves must be applied strictly in submission order")
	require.NoError(t, async.Close())
}

func TestAsyncCheckpointer_LoadSeesPendingSaves(t *testing.T) {
	inner := newRecordingCheckpointer(5 * time.Millisecond)
	async := NewAsyncCheckpointer(inner)
	defer func() { _ = async.Close() }()

	require.NoError(t, async.Save(1, testState(1)))
	state, err := async.Load(1)
	require.NoError(t, err, "Load must wait for earlier submissions")
	assert.Equal(t, testState(1), state)
}

func TestAsyncCheckpointer_FailedSaveIsSwallowed(t *testing.T) {
	inner := newRecordingCheckpointer(0)
	inner.failOn = 2
	async := NewAsyncCheckpointer(inner)

	for epoch := 1; epoch <= 3; epoch++ {
		require.NoError(t, async.Save(epoch, testState(epoch)), "a failing save must not surface to the caller")
	}
	require.NoError(t, async.Close())
	assert.Equal(t, []int{1, 3}, inner.savedOrder(), "only the failed snapshot is missing")
}

func TestAsyncCheckpointer_Retention(t *testing.T) {
	// End-to-end with the file checkpointer: after N ordered asynchronous
	// saves with numKeep=2, exactly the 2 most recently submitted remain.
	file, err := NewFileCheckpointer(t.TempDir(), "model", 2)
	require.NoError(t, err)
	async := NewAsyncCheckpointer(file)

	for epoch := 1; epoch <= 7; epoch++ {
		require.NoError(t, async.Save(epoch, testState(epoch)))
	}
	require.NoError(t, async.Close())

	epochs, err := file.List()
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7}, epochs)
}

func TestAsyncCheckpointer_SaveAfterClose(t *testing.T) {
	async := NewAsyncCheckpointer(newRecordingCheckpointer(0))
	require.NoError(t, async.Close())
	assert.Error(t, async.Save(1, testState(1)))
}
