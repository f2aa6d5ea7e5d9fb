package schedule

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/warden/errors"
)

func watcherFixture(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	declared := filepath.Join(dir, "declared.json")
	require.NoError(t, os.WriteFile(declared, []byte("[]\n"), 0o644))
	return NewStore(declared, filepath.Join(dir, "runtime.json"), nil), declared
}

func TestWatcherTriggersCallbackOnChange(t *testing.T) {
	store, declared := watcherFixture(t)

	var calls atomic.Int32
	w, err := NewWatcher(store, func() error {
		calls.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(declared, []byte(`[{"name":"sync","schedule":{"kind":"interval","intervalMs":1000},"sessionTarget":"main","wakeMode":"now"}]`), 0o644))

	require.Eventually(t, func() bool {
		return calls.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond, "debounced callback after a declared-file write")
}

func TestWatcherDebouncesBurstWrites(t *testing.T) {
	store, declared := watcherFixture(t)

	var calls atomic.Int32
	w, err := NewWatcher(store, func() error {
		calls.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	// Editors and git write in bursts; the debounce collapses them
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(declared, []byte("[]\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return calls.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(time.Second)
	assert.LessOrEqual(t, calls.Load(), int32(2), "burst of writes collapses into at most a couple of callbacks")
}

func TestWatcherSurvivesCallbackError(t *testing.T) {
	store, declared := watcherFixture(t)

	var calls atomic.Int32
	w, err := NewWatcher(store, func() error {
		calls.Add(1)
		return errors.New("reconcile failed")
	}, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(declared, []byte("[]\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	// A failed reconciliation is logged, not fatal: the next change still fires
	time.Sleep(700 * time.Millisecond)
	require.NoError(t, os.WriteFile(declared, []byte("[] \n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcherMissingDeclaredFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "absent.json"), filepath.Join(dir, "runtime.json"), nil)

	_, err := NewWatcher(store, func() error { return nil }, nil)
	require.Error(t, err, "watching a nonexistent declared file fails at construction")
}
