package storage_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkcrawler/internal/storage"
	"github.com/JakeFAU/linkcrawler/internal/storage/memory"
)

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestPageCacheSequence(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	cache := storage.NewPageCache(blobs)

	id, err := cache.Store(context.Background(), []byte("<html>one</html>"))
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	id, err = cache.Store(context.Background(), []byte("<html>two</html>"))
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	body, ok := blobs.Get("file2.html")
	require.True(t, ok)
	assert.Equal(t, "<html>two</html>", string(body))
	assert.Equal(t, 2, cache.Stored())
}

func TestPageCacheConcurrentIDsUnique(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	cache := storage.NewPageCache(blobs)

	const n = 50
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := cache.Store(context.Background(), []byte("x"))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, n)
		seen[id] = true
	}
	assert.Equal(t, n, blobs.Len())
}

func TestPageCacheStoreError(t *testing.T) {
	t.Parallel()

	cache := storage.NewPageCache(failingStore{})
	_, err := cache.Store(context.Background(), []byte("x"))
	require.ErrorContains(t, err, "file1.html")
	assert.Equal(t, 1, cache.Stored())
}

func TestPageName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "file12.html", storage.PageName(12))
}
