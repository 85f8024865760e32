package tailsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, s *Source, n int) []string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var got []string
	for len(got) < n {
		lines, err := s.WaitAndRead(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, lines)
		got = append(got, lines...)
	}
	return got
}

func TestSource_FromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Client.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))

	s, err := New(path, Config{FromStart: true})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"one", "two"}, readLines(t, s, 2))
}

func TestSource_FollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Client.txt")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	s, err := New(path, Config{})
	require.NoError(t, err)
	defer s.Close()

	// Give the tailer time to seek to the end before appending.
	time.Sleep(200 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("new\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, []string{"new"}, readLines(t, s, 1))
}

func TestSource_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.txt"), Config{})
	assert.Error(t, err)
}

func TestSource_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Client.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := New(path, Config{})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = s.WaitAndRead(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
