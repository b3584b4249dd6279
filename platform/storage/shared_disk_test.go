package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedDiskRoundTrip(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	path := SubmissionFilePath(uuid.New(), uuid.New(), ".pdf")

	exists, err := store.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Write(path, strings.NewReader("%PDF-1.4 data")))

	size, err := store.Size(path)
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)

	reader, err := store.Read(path)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(data))

	require.NoError(t, store.Delete(path))
	exists, err = store.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSharedDiskRejectsEscapingPaths(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	err := store.Write("../outside.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = store.Read("submissions/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestUsage(t *testing.T) {
	store := NewSharedDisk(t.TempDir())

	stats, err := store.Usage()
	require.NoError(t, err)
	assert.Greater(t, stats.TotalBytes, uint64(0))
	assert.LessOrEqual(t, stats.FreeBytes, stats.TotalBytes)
}
