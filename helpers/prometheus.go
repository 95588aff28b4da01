package helpers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Tracks the number of HTTP requests.",
	})

	postsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posts_created_total",
		Help: "Tracks the number of created posts.",
	})

	feedPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_pages_total",
		Help: "Tracks the number of served feed pages.",
	})

	rollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mutation_rollbacks_total",
		Help: "Tracks optimistic mutations rolled back after a store failure.",
	})
)

func GetRegistery() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal,
		postsCreated,
		feedPages,
		rollbacks,
	)

	return registry
}

func IncrementRequests() {
	requestsTotal.Inc()
}

func IncrementPostsCreated() {
	postsCreated.Inc()
}

func IncrementFeedPages() {
	feedPages.Inc()
}

func IncrementRollbacks() {
	rollbacks.Inc()
}
