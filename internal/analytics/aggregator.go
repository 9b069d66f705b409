// Package analytics collects and aggregates usage events for the micro-blog
// service: mutations applied to the engine and queries served by the API.
// Events travel through Kafka so the aggregator can run in-process or as a
// standalone service.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microtrend-io/microtrend/pkg/kafka"
	"github.com/microtrend-io/microtrend/pkg/logger"
)

// AggregatedStats is the exported snapshot of all aggregate counters.
type AggregatedStats struct {
	UsersAdded       int64      `json:"users_added"`
	UsersDeleted     int64      `json:"users_deleted"`
	PostsIngested    int64      `json:"posts_ingested"`
	CascadeRemovals  int64      `json:"cascade_removed_posts"`
	TotalQueries     int64      `json:"total_queries"`
	CacheHits        int64      `json:"cache_hits"`
	CacheMisses      int64      `json:"cache_misses"`
	ZeroResultCount  int64      `json:"zero_result_count"`
	AvgLatencyMs     float64    `json:"avg_latency_ms"`
	P50LatencyMs     int64      `json:"p50_latency_ms"`
	P95LatencyMs     int64      `json:"p95_latency_ms"`
	P99LatencyMs     int64      `json:"p99_latency_ms"`
	TopQueriedKeys   []KeyCount `json:"top_queried_keys"`
	QueriesPerMinute float64    `json:"queries_per_minute"`
}

// KeyCount pairs a queried key (user, topic, or range) with its frequency.
type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Aggregator consumes analytics events and maintains in-memory aggregates.
type Aggregator struct {
	mu              sync.RWMutex
	usersAdded      atomic.Int64
	usersDeleted    atomic.Int64
	postsIngested   atomic.Int64
	cascadeRemovals atomic.Int64
	totalQueries    atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	zeroResults     atomic.Int64
	latencies       []int64
	keyCounts       map[string]int64
	startTime       time.Time

	logger *slog.Logger
}

// NewAggregator creates an empty Aggregator. Feed it events through
// HandleEvent on a Kafka consumer, or record them directly.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies: make([]int64, 0, 10000),
		keyCounts: make(map[string]int64),
		startTime: time.Now(),
		logger:    logger.WithComponent("analytics-aggregator"),
	}
}

// HandleEvent returns a kafka.MessageHandler that decodes analytics events
// and records them on agg. Undecodable events are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if event, err := kafka.DecodeJSON[QueryEvent](value); err == nil && event.Type == EventQuery {
			agg.RecordQuery(event)
			return nil
		}
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.RecordIngest(event)
		return nil
	}
}

// RecordIngest records a mutation event.
func (a *Aggregator) RecordIngest(event IngestEvent) {
	switch event.Type {
	case EventUserAdded:
		a.usersAdded.Add(1)
	case EventUserDeleted:
		a.usersDeleted.Add(1)
		a.cascadeRemovals.Add(int64(event.RemovedPosts))
	case EventPostIngest:
		a.postsIngested.Add(1)
	}
}

// RecordQuery records a read-query event.
func (a *Aggregator) RecordQuery(event QueryEvent) {
	a.totalQueries.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.ResultCount == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.keyCounts[event.Query+":"+event.Key]++
	a.mu.Unlock()
}

// Stats returns a snapshot of all aggregates.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		UsersAdded:      a.usersAdded.Load(),
		UsersDeleted:    a.usersDeleted.Load(),
		PostsIngested:   a.postsIngested.Load(),
		CascadeRemovals: a.cascadeRemovals.Load(),
		TotalQueries:    a.totalQueries.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueriedKeys = topN(a.keyCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN ranks keys by descending count, ties broken by key name so output
// order is reproducible.
func topN(counts map[string]int64, n int) []KeyCount {
	result := make([]KeyCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, KeyCount{Key: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
