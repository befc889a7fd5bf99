package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		LogPath: filepath.Join(dir, "crawl.log"),
		URLPath: filepath.Join(dir, "urls.csv"),
		MapPath: filepath.Join(dir, "map.csv"),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecorderWritesAllFiles(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	rec, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)

	rec.WriteLogLine("URLs to check: 1")
	rec.WriteLogLine("Checked http://site.test/ - 200")
	rec.WriteURLRow("http://site.test/", 200)
	rec.WriteURLRow("http://site.test/a,b", 0)
	rec.WriteMapRow("http://site.test/", "http://site.test/about")
	require.NoError(t, rec.Close())

	assert.Equal(t, "URLs to check: 1\nChecked http://site.test/ - 200\n", readFile(t, cfg.LogPath))
	assert.Equal(t, "http://site.test/,200\n\"http://site.test/a,b\",0\n", readFile(t, cfg.URLPath))
	assert.Equal(t, "http://site.test/,http://site.test/about\n", readFile(t, cfg.MapPath))
}

func TestRecorderIgnoresEmptyInput(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	rec, err := Open(cfg, nil)
	require.NoError(t, err)

	rec.WriteLogLine("")
	rec.WriteURLRow("", 200)
	rec.WriteMapRow("", "http://site.test/")
	rec.WriteMapRow("http://site.test/", "")
	require.NoError(t, rec.Close())

	assert.Empty(t, readFile(t, cfg.LogPath))
	assert.Empty(t, readFile(t, cfg.URLPath))
	assert.Empty(t, readFile(t, cfg.MapPath))
}

func TestRecorderTruncatesOnOpen(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.URLPath, []byte("stale,1\n"), 0o600))

	rec, err := Open(cfg, nil)
	require.NoError(t, err)
	rec.WriteURLRow("http://site.test/", 301)
	require.NoError(t, rec.Close())

	assert.Equal(t, "http://site.test/,301\n", readFile(t, cfg.URLPath))
}

func TestRecorderOpenFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.MapPath = filepath.Join(t.TempDir(), "missing", "map.csv")
	_, err := Open(cfg, nil)
	require.ErrorContains(t, err, "open site map")

	cfg = testConfig(t)
	cfg.LogPath = " "
	_, err = Open(cfg, nil)
	require.ErrorContains(t, err, "path is required")
}

func TestRecorderConcurrentWriters(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Buffer = 4
	rec, err := Open(cfg, nil)
	require.NoError(t, err)

	const writers, rows = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rows; i++ {
				rec.WriteMapRow(fmt.Sprintf("http://site.test/w%d", w), fmt.Sprintf("http://site.test/r%d", i))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, rec.Close())

	records, err := csv.NewReader(strings.NewReader(readFile(t, cfg.MapPath))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, writers*rows)
	for _, record := range records {
		require.Len(t, record, 2)
		assert.True(t, strings.HasPrefix(record[0], "http://site.test/w"))
	}
}

func TestRecorderWriteAfterClose(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	rec, err := Open(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	rec.WriteLogLine("late")
	assert.Empty(t, readFile(t, cfg.LogPath))
}
