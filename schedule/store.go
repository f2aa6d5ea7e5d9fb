package schedule

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
)

// ErrMalformedDeclared indicates the declared job list failed to parse or
// validate. Unlike a corrupt runtime store this is a configuration defect:
// callers must not silently proceed with it.
var ErrMalformedDeclared = errors.New("malformed declared job list")

// runtimeFile is the on-disk envelope for the runtime store. Older gateways
// wrote a bare array; both forms are accepted on read, the envelope on write.
type runtimeFile struct {
	Jobs []ScheduledJob `json:"jobs"`
}

// Store reads and writes the declared and runtime job list files.
//
// Both files are whole-file JSON documents replaced atomically on write; no
// file locking is needed because Warden is the only writer while it runs.
type Store struct {
	declaredPath string
	runtimePath  string
	logger       *zap.SugaredLogger
}

// NewStore creates a job store over the given declared and runtime file paths
func NewStore(declaredPath, runtimePath string, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		declaredPath: declaredPath,
		runtimePath:  runtimePath,
		logger:       log,
	}
}

// DeclaredPath returns the declared job list path (used by the file watcher)
func (s *Store) DeclaredPath() string {
	return s.declaredPath
}

// LoadDeclared reads the declared job list.
//
// An absent file is not an error: reconciliation is simply skipped, so the
// result is (nil, nil). A file that exists but does not parse or validate is a
// configuration defect and returns ErrMalformedDeclared.
func (s *Store) LoadDeclared() ([]DeclaredJob, error) {
	data, err := os.ReadFile(s.declaredPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read declared job list %s", s.declaredPath)
	}

	var declared []DeclaredJob
	if err := json.Unmarshal(data, &declared); err != nil {
		return nil, errors.Wrapf(ErrMalformedDeclared, "%s: %v", s.declaredPath, err)
	}

	for _, d := range declared {
		if err := d.Validate(); err != nil {
			return nil, errors.Wrapf(ErrMalformedDeclared, "%s: %v", s.declaredPath, err)
		}
	}

	return declared, nil
}

// LoadRuntime reads the persisted runtime job list.
//
// Accepts either a bare JSON array or a {"jobs": [...]} envelope. An absent
// file yields an empty list; so does a file that fails to parse — a corrupt
// runtime store must never abort startup, the reconciliation pass rebuilds
// what it can from the declared side.
func (s *Store) LoadRuntime() ([]ScheduledJob, error) {
	data, err := os.ReadFile(s.runtimePath)
	if os.IsNotExist(err) {
		return []ScheduledJob{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read runtime job store %s", s.runtimePath)
	}

	if jobs, ok := parseRuntime(data); ok {
		return jobs, nil
	}

	s.logger.Warnw("Runtime job store is malformed, treating as empty",
		"path", s.runtimePath)
	return []ScheduledJob{}, nil
}

// parseRuntime tries the envelope form first, then the legacy bare array
func parseRuntime(data []byte) ([]ScheduledJob, bool) {
	var envelope runtimeFile
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Jobs != nil {
		return envelope.Jobs, true
	}

	var jobs []ScheduledJob
	if err := json.Unmarshal(data, &jobs); err == nil {
		return jobs, true
	}

	return nil, false
}

// SaveRuntime atomically replaces the runtime job store with the given list
func (s *Store) SaveRuntime(jobs []ScheduledJob) error {
	if jobs == nil {
		jobs = []ScheduledJob{}
	}

	data, err := json.MarshalIndent(runtimeFile{Jobs: jobs}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal runtime job store")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.runtimePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create state directory %s", dir)
	}

	// Write-then-rename keeps the store whole even if we die mid-write
	tmp, err := os.CreateTemp(dir, ".jobs-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file for runtime job store")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write runtime job store")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close runtime job store temp file")
	}

	if err := os.Rename(tmpPath, s.runtimePath); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to replace runtime job store %s", s.runtimePath)
	}

	return nil
}
