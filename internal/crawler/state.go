package crawler

import "sync"

// Edge is a recorded site-map edge.
type Edge struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// crawlState holds the dedupe sets for a single crawl. Workers claim checked
// URLs concurrently; everything else is touched by the aggregating stage.
type crawlState struct {
	mu        sync.Mutex
	checked   map[string]Link
	order     []string
	requested map[string]struct{}
	edgeKeys  map[string]struct{}
	edges     []Edge
}

func newCrawlState() *crawlState {
	return &crawlState{
		checked:   make(map[string]Link),
		requested: make(map[string]struct{}),
		edgeKeys:  make(map[string]struct{}),
	}
}

// markRequested records url and returns true if it had not been requested.
func (s *crawlState) markRequested(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requested[url]; ok {
		return false
	}
	s.requested[url] = struct{}{}
	return true
}

// claimChecked stores link under its effective URL and returns false when
// that URL was already checked.
func (s *crawlState) claimChecked(link Link) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checked[link.EffectiveURL]; ok {
		return false
	}
	s.checked[link.EffectiveURL] = link
	s.order = append(s.order, link.EffectiveURL)
	return true
}

// known reports whether url is in the checked or requested set.
func (s *crawlState) known(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checked[url]; ok {
		return true
	}
	_, ok := s.requested[url]
	return ok
}

// markEdge records the edge under key and returns true if it is new.
func (s *crawlState) markEdge(key string, edge Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edgeKeys[key]; ok {
		return false
	}
	s.edgeKeys[key] = struct{}{}
	s.edges = append(s.edges, edge)
	return true
}

func (s *crawlState) checkedLinks() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Link, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.checked[key])
	}
	return out
}

func (s *crawlState) lookup(url string) (Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.checked[url]
	return link, ok
}

func (s *crawlState) siteMap() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edge(nil), s.edges...)
}
