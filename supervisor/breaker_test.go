package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(t *testing.T) (*CircuitBreaker, *ArtifactStore) {
	t.Helper()
	artifacts := NewArtifactStore(t.TempDir())
	b := NewCircuitBreaker(30*time.Second, 3, artifacts, nil)
	return b, artifacts
}

func TestBreakerHealthyExitsNeverOpen(t *testing.T) {
	b, artifacts := testBreaker(t)

	// A process that ran past the window is healthy-then-unlucky no matter
	// how often it dies.
	for i := 0; i < 20; i++ {
		verdict := b.Classify(31*time.Second, 137, "")
		assert.Equal(t, VerdictRestart, verdict)
		assert.Equal(t, 0, b.CrashCount())
	}

	artifact, err := artifacts.Read()
	require.NoError(t, err)
	assert.Nil(t, artifact)
}

func TestBreakerOpensOnThirdQuickCrash(t *testing.T) {
	b, artifacts := testBreaker(t)

	// Scenario: uptimes [2s, 3s, 1s] with window 30s, max 3
	assert.Equal(t, VerdictRestart, b.Classify(2*time.Second, 1, ""))
	assert.Equal(t, 1, b.CrashCount())
	assert.Equal(t, VerdictRestart, b.Classify(3*time.Second, 1, ""))
	assert.Equal(t, 2, b.CrashCount())
	assert.Equal(t, VerdictOpen, b.Classify(1*time.Second, 1, "boom: config invalid"))

	artifact, err := artifacts.Read()
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, ErrorKindBreakerOpen, artifact.Error)
	require.NotNil(t, artifact.CrashCount)
	assert.Equal(t, 3, *artifact.CrashCount)
	require.NotNil(t, artifact.ExitCode)
	assert.Equal(t, 1, *artifact.ExitCode)
	assert.Contains(t, artifact.Stderr, "config invalid")
	assert.NotEmpty(t, artifact.Timestamp)
}

func TestBreakerWindowExpiryResetsCount(t *testing.T) {
	b, _ := testBreaker(t)

	now := time.UnixMilli(1_000_000)
	b.SetClock(func() time.Time { return now })

	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, 2, b.CrashCount())

	// A quick crash more than windowMs after the first starts a fresh window
	now = now.Add(31 * time.Second)
	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, 1, b.CrashCount())
}

func TestBreakerHealthyRunResetsWindow(t *testing.T) {
	b, _ := testBreaker(t)

	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, 2, b.CrashCount())

	// One long run wipes the slate
	assert.Equal(t, VerdictRestart, b.Classify(30*time.Second, 0, ""))
	assert.Equal(t, 0, b.CrashCount())

	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, 1, b.CrashCount())
}

func TestBreakerDoesNotOpenBeforeThreshold(t *testing.T) {
	b, artifacts := testBreaker(t)

	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))
	assert.Equal(t, VerdictRestart, b.Classify(time.Second, 1, ""))

	artifact, err := artifacts.Read()
	require.NoError(t, err)
	assert.Nil(t, artifact, "no artifact before the breaker opens")
}
