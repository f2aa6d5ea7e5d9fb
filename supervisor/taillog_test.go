package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailLogKeepsLastLines(t *testing.T) {
	tail := NewTailLog(3)

	for i := 1; i <= 5; i++ {
		_, err := fmt.Fprintf(tail, "line %d\n", i)
		require.NoError(t, err)
	}

	assert.Equal(t, "line 3\nline 4\nline 5", tail.Tail())
}

func TestTailLogPartialWrites(t *testing.T) {
	tail := NewTailLog(10)

	// A line delivered across several writes is still one line
	tail.Write([]byte("hel"))
	tail.Write([]byte("lo wo"))
	tail.Write([]byte("rld\nnext"))

	assert.Equal(t, "hello world\nnext", tail.Tail())

	tail.Write([]byte(" line\n"))
	assert.Equal(t, "hello world\nnext line", tail.Tail())
}

func TestTailLogEmpty(t *testing.T) {
	tail := NewTailLog(10)
	assert.Equal(t, "", tail.Tail())
}

func TestTailLogReset(t *testing.T) {
	tail := NewTailLog(10)
	tail.Write([]byte("stale output\npartial"))

	tail.Reset()
	assert.Equal(t, "", tail.Tail())

	tail.Write([]byte("fresh\n"))
	assert.Equal(t, "fresh", tail.Tail())
}

func TestTailLogPersist(t *testing.T) {
	dir := t.TempDir()
	tail := NewTailLog(10)
	tail.Write([]byte("last words\n"))

	require.NoError(t, tail.Persist(dir))

	data, err := os.ReadFile(filepath.Join(dir, tailFileName))
	require.NoError(t, err)
	assert.Equal(t, "last words\n", string(data))
}
