package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/teranos/warden/errors"
)

// Artifact error kinds
const (
	ErrorKindBreakerOpen    = "circuit_breaker_open"
	ErrorKindLaunchFailed   = "launch_failed"
	ErrorKindMalformedState = "malformed_state"
)

// artifactFileName is the single slot under the state directory
const artifactFileName = "startup-error.json"

// Artifact is the persisted startup error record. It is written when the
// circuit breaker opens or an early top-level failure occurs, cleared before
// each fresh supervision attempt, and read verbatim by the status server.
type Artifact struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	ExitCode   *int   `json:"exitCode,omitempty"`
	CrashCount *int   `json:"crashCount,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// ArtifactStore manages the single on-disk artifact slot
type ArtifactStore struct {
	path string
}

// NewArtifactStore creates an artifact store under the given state directory
func NewArtifactStore(stateDir string) *ArtifactStore {
	return &ArtifactStore{path: filepath.Join(stateDir, artifactFileName)}
}

// Path returns the artifact file path
func (s *ArtifactStore) Path() string {
	return s.path
}

// Write atomically overwrites the artifact slot. The timestamp is stamped
// here so callers only describe the failure.
func (s *ArtifactStore) Write(artifact Artifact) error {
	if artifact.Timestamp == "" {
		artifact.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal startup error artifact")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create state directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create artifact temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write artifact")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close artifact temp file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to replace artifact %s", s.path)
	}

	return nil
}

// Read returns the current artifact, or (nil, nil) when no failure has been
// recorded since the last clear.
func (s *ArtifactStore) Read() (*Artifact, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifact %s", s.path)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, errors.Wrapf(err, "failed to parse artifact %s", s.path)
	}

	return &artifact, nil
}

// Clear removes the artifact slot. Clearing an already-empty slot is fine.
func (s *ArtifactStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to clear artifact %s", s.path)
	}
	return nil
}
