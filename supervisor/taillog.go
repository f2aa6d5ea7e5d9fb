package supervisor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teranos/warden/errors"
)

// tailFileName is the rolling stderr capture under the state directory
const tailFileName = "gateway-stderr.log"

// TailLog captures the last N lines written to it. The child's stderr is
// teed through one of these; the circuit breaker reads the tail when it
// opens so the artifact carries the child's final words.
//
// Safe for concurrent use: the launcher's copy goroutine writes while the
// breaker or status paths read.
type TailLog struct {
	mu       sync.Mutex
	maxLines int
	lines    []string
	partial  bytes.Buffer
}

// NewTailLog creates a tail log keeping at most maxLines lines
func NewTailLog(maxLines int) *TailLog {
	if maxLines <= 0 {
		maxLines = 200
	}
	return &TailLog{maxLines: maxLines}
}

// Write implements io.Writer. Input is split on newlines; an unterminated
// final fragment is held until its newline arrives.
func (t *TailLog) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial.Write(p)
	for {
		data := t.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		t.appendLine(string(data[:idx]))
		t.partial.Next(idx + 1)
	}

	return len(p), nil
}

func (t *TailLog) appendLine(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.maxLines {
		t.lines = t.lines[len(t.lines)-t.maxLines:]
	}
}

// Tail returns the captured lines joined with newlines, including any
// unterminated final fragment.
func (t *TailLog) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := strings.Join(t.lines, "\n")
	if t.partial.Len() > 0 {
		if out != "" {
			out += "\n"
		}
		out += t.partial.String()
	}
	return out
}

// Reset drops all captured lines. Called before each launch attempt so the
// tail only ever describes the current child.
func (t *TailLog) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.partial.Reset()
}

// Persist writes the current tail to the rolling log file under stateDir.
// Called when the child exits; best effort readers (status tooling) use it.
func (t *TailLog) Persist(stateDir string) error {
	path := filepath.Join(stateDir, tailFileName)
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create state directory %s", stateDir)
	}
	if err := os.WriteFile(path, []byte(t.Tail()+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "failed to persist stderr tail %s", path)
	}
	return nil
}
