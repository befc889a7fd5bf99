package crawler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlStateClaimCheckedOnce(t *testing.T) {
	t.Parallel()

	s := newCrawlState()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link := Link{RequestedURL: fmt.Sprintf("http://site.test/r%d", i), EffectiveURL: "http://site.test/final"}
			if s.claimChecked(link) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, s.checkedLinks(), 1)
	_, ok := s.lookup("http://site.test/final")
	assert.True(t, ok)
}

func TestCrawlStateKnown(t *testing.T) {
	t.Parallel()

	s := newCrawlState()
	assert.False(t, s.known("http://site.test/a"))

	assert.True(t, s.markRequested("http://site.test/a"))
	assert.False(t, s.markRequested("http://site.test/a"))
	assert.True(t, s.known("http://site.test/a"))

	s.claimChecked(Link{RequestedURL: "http://site.test/b", EffectiveURL: "http://site.test/c"})
	assert.True(t, s.known("http://site.test/c"))
	assert.False(t, s.known("http://site.test/b"))
}

func TestCrawlStateEdgesKeepDiscoveryOrder(t *testing.T) {
	t.Parallel()

	s := newCrawlState()
	assert.True(t, s.markEdge("k1", Edge{Source: "a", Dest: "b"}))
	assert.True(t, s.markEdge("k2", Edge{Source: "a", Dest: "c"}))
	assert.False(t, s.markEdge("k1", Edge{Source: "a", Dest: "b"}))

	edges := s.siteMap()
	assert.Equal(t, []Edge{{Source: "a", Dest: "b"}, {Source: "a", Dest: "c"}}, edges)

	edges[0].Dest = "mutated"
	assert.Equal(t, "b", s.siteMap()[0].Dest)
}
