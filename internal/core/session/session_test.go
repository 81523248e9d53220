package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoadMissing(t *testing.T) {
	t.Parallel()

	cache := NewFile(filepath.Join(t.TempDir(), "auth.json"))
	blob, ok, err := cache.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, blob)
}

func TestFileStoreAndOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	cache := NewFile(path)
	assert.Equal(t, path, cache.Path())

	require.NoError(t, cache.Store([]byte(`{"cookies":[1]}`)))
	blob, ok, err := cache.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"cookies":[1]}`, string(blob))

	require.NoError(t, cache.Store([]byte(`{"cookies":[2]}`)))
	blob, ok, err = cache.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"cookies":[2]}`, string(blob))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileLoadEmptyIsUnset(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, ok, err := NewFile(path).Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileConcurrentStoresLastWriterWins(t *testing.T) {
	t.Parallel()

	cache := NewFile(filepath.Join(t.TempDir(), "auth.json"))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, cache.Store([]byte{byte('a' + n)}))
		}(i)
	}
	wg.Wait()

	blob, ok, err := cache.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, blob, 1)
	assert.True(t, blob[0] >= 'a' && blob[0] < 'a'+8)
}
