package schedule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(
		filepath.Join(dir, "jobs.declared.json"),
		filepath.Join(dir, "jobs.runtime.json"),
		nil,
	)
	return store, dir
}

func TestLoadDeclaredAbsentFileSkipsReconciliation(t *testing.T) {
	store, _ := testStore(t)

	declared, err := store.LoadDeclared()
	require.NoError(t, err)
	assert.Nil(t, declared)
}

func TestLoadDeclaredParsesValidList(t *testing.T) {
	store, _ := testStore(t)

	content := `[
		{"name":"sync","schedule":{"kind":"cron","expr":"0 * * * *"},"sessionTarget":"main","wakeMode":"now"},
		{"name":"cleanup","enabled":false,"schedule":{"kind":"interval","intervalMs":60000},"sessionTarget":"isolated","wakeMode":"next-heartbeat"}
	]`
	require.NoError(t, os.WriteFile(store.DeclaredPath(), []byte(content), 0o644))

	declared, err := store.LoadDeclared()
	require.NoError(t, err)
	require.Len(t, declared, 2)
	assert.Equal(t, "sync", declared[0].Name)
	require.NotNil(t, declared[1].Enabled)
	assert.False(t, *declared[1].Enabled)
}

func TestLoadDeclaredMalformedJSONIsAnError(t *testing.T) {
	store, _ := testStore(t)
	require.NoError(t, os.WriteFile(store.DeclaredPath(), []byte(`{not json`), 0o644))

	_, err := store.LoadDeclared()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDeclared)
}

func TestLoadDeclaredInvalidScheduleIsAnError(t *testing.T) {
	store, _ := testStore(t)
	content := `[{"name":"bad","schedule":{"kind":"cron","expr":"not a cron"},"wakeMode":"now"}]`
	require.NoError(t, os.WriteFile(store.DeclaredPath(), []byte(content), 0o644))

	_, err := store.LoadDeclared()
	assert.ErrorIs(t, err, ErrMalformedDeclared)
}

func TestLoadRuntimeAbsentFileIsEmpty(t *testing.T) {
	store, _ := testStore(t)

	jobs, err := store.LoadRuntime()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestLoadRuntimeAcceptsBareArray(t *testing.T) {
	store, dir := testStore(t)
	content := `[{"id":"x1","name":"A","schedule":{"kind":"interval","intervalMs":1000}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.runtime.json"), []byte(content), 0o644))

	jobs, err := store.LoadRuntime()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "x1", jobs[0].ID)
}

func TestLoadRuntimeAcceptsJobsEnvelope(t *testing.T) {
	store, dir := testStore(t)
	content := `{"jobs":[{"id":"x2","name":"B","schedule":{"kind":"interval","intervalMs":1000}}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.runtime.json"), []byte(content), 0o644))

	jobs, err := store.LoadRuntime()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "x2", jobs[0].ID)
}

func TestLoadRuntimeCorruptFileDegradesToEmpty(t *testing.T) {
	store, dir := testStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.runtime.json"), []byte(`%%%`), 0o644))

	jobs, err := store.LoadRuntime()
	require.NoError(t, err, "a corrupt runtime store must never abort startup")
	assert.Empty(t, jobs)
}

func TestSaveRuntimeRoundTrip(t *testing.T) {
	store, _ := testStore(t)

	in := []ScheduledJob{{
		ID:            "x1",
		AgentID:       "main",
		Name:          "A",
		Enabled:       true,
		CreatedAtMs:   1,
		UpdatedAtMs:   2,
		Schedule:      Schedule{Kind: ScheduleKindCron, Expr: "@daily"},
		SessionTarget: SessionTargetMain,
		WakeMode:      WakeModeNow,
	}}

	require.NoError(t, store.SaveRuntime(in))

	out, err := store.LoadRuntime()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSaveRuntimeNilSavesEmptyList(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, store.SaveRuntime(nil))

	out, err := store.LoadRuntime()
	require.NoError(t, err)
	assert.Empty(t, out)
}
