package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_RecordFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)
	l.now = func() time.Time {
		return time.Date(2026, 1, 2, 15, 4, 5, 0, time.FixedZone("X", 3600))
	}

	l.Record(context.Background(), OpSet, "user:1")
	l.Record(context.Background(), OpDelete, "user:1")

	assert.Equal(t,
		"2026-01-02T14:04:05Z: SET on key user:1\n"+
			"2026-01-02T14:04:05Z: DELETE on key user:1\n",
		buf.String())
}

func TestOpen_AppendsWithRestrictedMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	l, err := Open(path, nil)
	require.NoError(t, err)
	l.Record(context.Background(), OpSet, "a")
	require.NoError(t, l.Close())

	l, err = Open(path, nil)
	require.NoError(t, err)
	l.Record(context.Background(), OpSet, "b")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], ": SET on key a"))
	assert.True(t, strings.HasSuffix(lines[1], ": SET on key b"))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), st.Mode().Perm())
}

func TestOpen_Disabled(t *testing.T) {
	for _, path := range []string{"", "-"} {
		l, err := Open(path, nil)
		require.NoError(t, err)
		assert.False(t, l.Enabled())
		l.Record(context.Background(), OpSet, "k")
		assert.NoError(t, l.Close())
	}
}

func TestLog_RecordAfterClose(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)
	require.NoError(t, l.Close())

	l.Record(context.Background(), OpSet, "k")
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLog_WriteErrorSwallowed(t *testing.T) {
	l := New(failingWriter{}, nil)
	assert.NotPanics(t, func() {
		l.Record(context.Background(), OpSet, "k")
	})
}

func TestLog_ConcurrentRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.Record(context.Background(), OpSet, "k")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 200)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, ": SET on key k"), line)
	}
}
