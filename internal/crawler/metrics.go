package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// URLsChecked tracks completed checks partitioned by status class.
	URLsChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkcrawler_urls_checked_total",
		Help: "The total number of URLs checked, labeled by status class.",
	}, []string{"status_class"})
	// URLsRejected tracks filter rejections by stage and reason.
	URLsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkcrawler_urls_rejected_total",
		Help: "The total number of URLs dropped by the domain policy.",
	}, []string{"stage", "reason"})
	// FetchFailures tracks checks that never produced a response.
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_fetch_failures_total",
		Help: "The total number of fetches that failed before a response arrived.",
	})
	// SiteMapEdges tracks unique site-map edges recorded.
	SiteMapEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_sitemap_edges_total",
		Help: "The total number of unique site-map edges recorded.",
	})
	// FrontierSize reports the number of URLs in the current round.
	FrontierSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkcrawler_frontier_size",
		Help: "The number of URLs scheduled in the current round.",
	})
	// RoundsCompleted tracks finished crawl rounds.
	RoundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkcrawler_rounds_total",
		Help: "The total number of crawl rounds completed.",
	})
)
